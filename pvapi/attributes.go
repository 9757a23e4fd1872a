package pvapi

var (
	// Attributes maps attribute names to their types.  Only the attributes the
	// drivers in this module touch are listed.
	Attributes = map[string]string{
		// uint32
		"BinningX":              "uint32",
		"BinningY":              "uint32",
		"RegionX":               "uint32",
		"RegionY":               "uint32",
		"Width":                 "uint32",
		"Height":                "uint32",
		"SensorBits":            "uint32",
		"SensorWidth":           "uint32",
		"SensorHeight":          "uint32",
		"TimeStampFrequency":    "uint32",
		"TotalBytesPerFrame":    "uint32",
		"AcquisitionFrameCount": "uint32",
		"ExposureValue":         "uint32",
		"GainValue":             "uint32",
		"PacketSize":            "uint32",
		"StatFramesCompleted":   "uint32",
		"StatFramesDropped":     "uint32",
		"StatPacketsErroneous":  "uint32",
		"StatPacketsMissed":     "uint32",
		"StatPacketsReceived":   "uint32",
		"StatPacketsRequested":  "uint32",
		"StatPacketsResent":     "uint32",

		// float32
		"FrameRate":     "float32",
		"StatFrameRate": "float32",

		// enums
		"AcquisitionMode":       "enum",
		"FrameStartTriggerMode": "enum",
		"PixelFormat":           "enum",
		"SensorType":            "enum",
		"StatDriverType":        "enum",

		// strings
		"CameraName":        "string",
		"DeviceIPAddress":   "string",
		"StatFilterVersion": "string",

		// commands
		"AcquisitionStart": "command",
		"AcquisitionAbort": "command",
		"AcquisitionStop":  "command",
	}

	// TriggerModes is the FrameStartTriggerMode enum, indexed by the driver's trigger mode parameter
	TriggerModes = []string{"Freerun", "SyncIn1", "SyncIn2", "SyncIn3", "SyncIn4", "FixedRate", "Software"}

	// DriverTypes is the StatDriverType enum
	DriverTypes = []string{"Standard", "Filter"}
)

// IndexOf returns the position of s in table, or -1
func IndexOf(table []string, s string) int {
	for i, v := range table {
		if v == s {
			return i
		}
	}
	return -1
}
