/*
Package adparam holds the parameter table of an area detector.

Parameters are identified by a Param, have a fixed Kind, and are addressed by
name from the outside world.  A Store records which parameters changed since
the last CallCallbacks and forwards the changes to subscribers.

Store is not safe for concurrent use; the owning driver serializes access.
*/
package adparam

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownParam is generated when a name or id is not in the table
	ErrUnknownParam = errors.New("unknown parameter")

	// ErrWrongKind is generated when a parameter is accessed as the wrong kind
	ErrWrongKind = errors.New("parameter is of a different kind")
)

// Kind is the value kind of a parameter
type Kind int

const (
	Int Kind = iota
	Float
	String
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	case Float:
		return "float"
	case String:
		return "string"
	}
	return "unknown"
}

// Param identifies a parameter
type Param int

const (
	Acquire Param = iota
	ImageMode
	NumImages
	NumExposures
	TriggerMode
	DataType
	AcquireTime
	AcquirePeriod
	Gain
	Status
	StatusMessage

	BinX
	BinY
	MinX
	MinY
	SizeX
	SizeY
	MaxSizeX
	MaxSizeY
	ImageSizeX
	ImageSizeY
	ImageSize

	ImageCounter
	ArrayCounter
	Manufacturer
	Model

	AutoSave
	WriteFile
	FilePath
	FileName
	FileNumber
	FileTemplate
	FullFileName
	FileFormat

	ReadStatistics
	DriverType
	FilterVersion
	FrameRate
	FramesCompleted
	FramesDropped
	PacketsErroneous
	PacketsMissed
	PacketsReceived
	PacketsRequested
	PacketsResent
	BadFrameCounter

	numParams
)

type paramDef struct {
	name string
	kind Kind
}

var defs = [numParams]paramDef{
	Acquire:       {"Acquire", Int},
	ImageMode:     {"ImageMode", Int},
	NumImages:     {"NumImages", Int},
	NumExposures:  {"NumExposures", Int},
	TriggerMode:   {"TriggerMode", Int},
	DataType:      {"DataType", Int},
	AcquireTime:   {"AcquireTime", Float},
	AcquirePeriod: {"AcquirePeriod", Float},
	Gain:          {"Gain", Float},
	Status:        {"DetectorState", Int},
	StatusMessage: {"StatusMessage", String},

	BinX:       {"BinX", Int},
	BinY:       {"BinY", Int},
	MinX:       {"MinX", Int},
	MinY:       {"MinY", Int},
	SizeX:      {"SizeX", Int},
	SizeY:      {"SizeY", Int},
	MaxSizeX:   {"MaxSizeX", Int},
	MaxSizeY:   {"MaxSizeY", Int},
	ImageSizeX: {"ArraySizeX", Int},
	ImageSizeY: {"ArraySizeY", Int},
	ImageSize:  {"ArraySize", Int},

	ImageCounter: {"ImageCounter", Int},
	ArrayCounter: {"ArrayCounter", Int},
	Manufacturer: {"Manufacturer", String},
	Model:        {"Model", String},

	AutoSave:     {"AutoSave", Int},
	WriteFile:    {"WriteFile", Int},
	FilePath:     {"FilePath", String},
	FileName:     {"FileName", String},
	FileNumber:   {"FileNumber", Int},
	FileTemplate: {"FileTemplate", String},
	FullFileName: {"FullFileName", String},
	FileFormat:   {"FileFormat", Int},

	ReadStatistics:   {"PSReadStatistics", Int},
	DriverType:       {"PSDriverType", String},
	FilterVersion:    {"PSFilterVersion", String},
	FrameRate:        {"PSFrameRate", Float},
	FramesCompleted:  {"PSFramesCompleted", Int},
	FramesDropped:    {"PSFramesDropped", Int},
	PacketsErroneous: {"PSPacketsErroneous", Int},
	PacketsMissed:    {"PSPacketsMissed", Int},
	PacketsReceived:  {"PSPacketsReceived", Int},
	PacketsRequested: {"PSPacketsRequested", Int},
	PacketsResent:    {"PSPacketsResent", Int},
	BadFrameCounter:  {"PSBadFrameCounter", Int},
}

func (p Param) valid() bool {
	return p >= 0 && p < numParams
}

func (p Param) String() string {
	if !p.valid() {
		return fmt.Sprintf("Param(%d)", int(p))
	}
	return defs[p].name
}

// Kind returns the value kind of the parameter
func (p Param) Kind() Kind {
	if !p.valid() {
		return -1
	}
	return defs[p].kind
}

// Lookup finds a parameter by name, ignoring case
func Lookup(name string) (Param, error) {
	for idx, d := range defs {
		if strings.EqualFold(d.name, name) {
			return Param(idx), nil
		}
	}
	return -1, fmt.Errorf("%w: %s", ErrUnknownParam, name)
}

// Names lists every parameter name in table order
func Names() []string {
	out := make([]string, numParams)
	for idx, d := range defs {
		out[idx] = d.name
	}
	return out
}
