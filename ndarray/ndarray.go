/*
Package ndarray contains reference counted image buffers and the pool they come from.

An Image is handed from a camera driver to any number of consumers.  Each
holder calls Reserve to keep it and Release when done; when the count reaches
zero the memory returns to the Pool that allocated it.
*/
package ndarray

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"

	"go.uber.org/atomic"
)

// ErrPoolExhausted is generated when an allocation would exceed the pool's limits
var ErrPoolExhausted = errors.New("image pool exhausted")

// DataType is the element type of an image
type DataType int

const (
	Int8 DataType = iota
	UInt8
	Int16
	UInt16
	Int32
	UInt32
	Float32
	Float64
)

var dataTypeNames = []string{"Int8", "UInt8", "Int16", "UInt16", "Int32", "UInt32", "Float32", "Float64"}

func (d DataType) String() string {
	if d >= 0 && int(d) < len(dataTypeNames) {
		return dataTypeNames[d]
	}
	return fmt.Sprintf("DataType(%d)", int(d))
}

// ParseDataType looks up a DataType by name, ignoring case
func ParseDataType(s string) (DataType, bool) {
	for idx, name := range dataTypeNames {
		if strings.EqualFold(name, s) {
			return DataType(idx), true
		}
	}
	return 0, false
}

// Size is the number of bytes in one element
func (d DataType) Size() int {
	switch d {
	case Int8, UInt8:
		return 1
	case Int16, UInt16:
		return 2
	case Float64:
		return 8
	default:
		return 4
	}
}

// Image is a frame of pixel data with the metadata consumers need
type Image struct {
	// Data holds the pixel data.  Its length is the number of valid bytes,
	// its capacity is the size of the allocation.
	Data []byte

	Width    int
	Height   int
	DataType DataType

	// UniqueID is the frame counter reported by the camera
	UniqueID int

	// TimeStamp is the camera timestamp in seconds
	TimeStamp float64

	refs atomic.Int32
	pool *Pool
}

// Reserve adds a reference to the image
func (i *Image) Reserve() {
	i.refs.Inc()
}

// Release drops a reference.  The last release returns the memory to the pool.
func (i *Image) Release() {
	n := i.refs.Dec()
	if n < 0 {
		panic("ndarray: Release of an image with no references")
	}
	if n == 0 && i.pool != nil {
		i.pool.put(i)
	}
}

// Refs returns the current reference count
func (i *Image) Refs() int {
	return int(i.refs.Load())
}

// CopyTo copies the valid pixel data into dst and returns the number of bytes copied
func (i *Image) CopyTo(dst []byte) int {
	return copy(dst, i.Data)
}

// ToImage converts the buffer into an image.Image for encoding.
// 8-bit data becomes image.Gray, 16-bit becomes image.Gray16; other types are not supported.
func (i *Image) ToImage() (image.Image, error) {
	rect := image.Rect(0, 0, i.Width, i.Height)
	n := i.Width * i.Height
	switch i.DataType {
	case Int8, UInt8:
		if len(i.Data) < n {
			return nil, fmt.Errorf("image holds %d bytes, need %d", len(i.Data), n)
		}
		pix := make([]byte, n)
		copy(pix, i.Data)
		return &image.Gray{Pix: pix, Stride: i.Width, Rect: rect}, nil
	case Int16, UInt16:
		if len(i.Data) < 2*n {
			return nil, fmt.Errorf("image holds %d bytes, need %d", len(i.Data), 2*n)
		}
		// camera data is little endian, image.Gray16 is big endian
		pix := make([]byte, 2*n)
		for idx := 0; idx < n; idx++ {
			binary.BigEndian.PutUint16(pix[2*idx:], binary.LittleEndian.Uint16(i.Data[2*idx:]))
		}
		return &image.Gray16{Pix: pix, Stride: 2 * i.Width, Rect: rect}, nil
	default:
		return nil, fmt.Errorf("cannot convert %s data to an image", i.DataType)
	}
}

// Pool allocates images and recycles their memory.  A zero limit is unlimited.
type Pool struct {
	mu   sync.Mutex
	free [][]byte

	// MaxBuffers caps the number of images outstanding at once
	MaxBuffers int

	// MaxMemory caps the bytes held by outstanding images
	MaxMemory int

	inUse  int
	memory int

	allocs atomic.Int64
}

// NewPool returns a pool with the given limits
func NewPool(maxBuffers, maxMemory int) *Pool {
	return &Pool{MaxBuffers: maxBuffers, MaxMemory: maxMemory}
}

// Alloc returns an image with capacity for size bytes and a reference count of one
func (p *Pool) Alloc(size int) (*Image, error) {
	if size <= 0 {
		return nil, fmt.Errorf("cannot allocate an image of %d bytes", size)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.MaxBuffers > 0 && p.inUse+1 > p.MaxBuffers {
		return nil, fmt.Errorf("%w: %d buffers outstanding", ErrPoolExhausted, p.inUse)
	}
	var buf []byte
	for idx, b := range p.free {
		if cap(b) >= size && !p.overMemory(cap(b)) {
			buf = b[:size]
			p.free = append(p.free[:idx], p.free[idx+1:]...)
			break
		}
	}
	if buf == nil {
		if p.overMemory(size) {
			return nil, fmt.Errorf("%w: %d of %d bytes in use", ErrPoolExhausted, p.memory, p.MaxMemory)
		}
		buf = make([]byte, size)
	}
	p.inUse++
	p.memory += cap(buf)
	p.allocs.Inc()
	img := &Image{Data: buf, pool: p}
	img.refs.Store(1)
	return img, nil
}

func (p *Pool) overMemory(size int) bool {
	return p.MaxMemory > 0 && p.memory+size > p.MaxMemory
}

func (p *Pool) put(img *Image) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inUse--
	p.memory -= cap(img.Data)
	p.free = append(p.free, img.Data[:0])
	img.Data = nil
}

// Allocations is the number of successful calls to Alloc over the pool's lifetime
func (p *Pool) Allocations() int64 {
	return p.allocs.Load()
}

// InUse is the number of images that have not been fully released
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse
}
