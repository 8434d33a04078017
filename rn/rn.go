// Package rn defines the RN487x vendor protocol: the fixed ASCII command
// strings and response tokens the module's firmware understands, the hex
// encodings its parameters use, and the parser for its service listing rows.
package rn

import "time"

// Line terminators. Commands are terminated with a bare CR; most module
// replies are LF-terminated, except the GK reply (CR) and LS rows (CR+LF).
const (
	CR byte = '\r'
	LF byte = '\n'
)

// Mode control. The command-mode escape sequence is sent without a CR.
const (
	EnterCommand = "$$$"
	ExitCommand  = "---"
	Reboot       = "R,1"
)

// Response tokens.
const (
	AOK          = "AOK"
	Err          = "Err"
	Prompt       = "CMD> "
	PromptCR     = "CMD>\r"
	Rebooting    = "Reboot"
	NoConnection = "none"
	Scanning     = "Scanning"

	// ListingEnd is the terminal row of the LS output.
	ListingEnd = "END"
)

// Command prefixes. Each engine operation builds <prefix><encoded parameters>
// and sends it as one line.
const (
	ClearAllServices          = "PZ"
	StopAdvertising           = "Y"
	ClearPermanentAdvertising = "NA,Z"
	ClearPermanentBeacon      = "NB,Z"
	ClearImmediateAdvertising = "IA,Z"
	ClearImmediateBeacon      = "IB,Z"
	SetSerializedName         = "S-,"
	SetSupportedFeatures      = "SR,"
	SetDefaultServices        = "SS,"
	SetAdvPower               = "SGA,"
	DefineServiceUUID         = "PS,"
	DefineCharacteristicUUID  = "PC,"
	StartPermanentAdvertising = "NA,"
	StartCustomAdvertising    = "A,"
	StartAdvertising          = "A"
	StartScan                 = "F"
	ConnectionStatus          = "GK"
	WriteLocalCharacteristic  = "SHW,"
	ReadLocalCharacteristic   = "SHR,"
	FirmwareVersion           = "V"
	ListServices              = "LS"
)

// Characteristic property bits, as used in PC definitions and LS rows.
const (
	PropIndicate            uint8 = 0x20
	PropNotify              uint8 = 0x10
	PropWrite               uint8 = 0x08
	PropWriteWithoutReply   uint8 = 0x04
	PropRead                uint8 = 0x02
)

// Parameter limits documented for the module.
const (
	MaxSerializedNameLen = 15
	MaxAdvPower          = 5
	MinCharacteristicLen = 0x01
	MaxCharacteristicLen = 0x14

	// Accepted UUID string lengths: 4 hex digits for a public 16-bit UUID,
	// 32 for a private 128-bit one.
	UUID16Len  = 4
	UUID128Len = 32
)

// Default timing for command exchanges.
const (
	DefaultCommandTimeout = time.Second
	DefineTimeout         = 500 * time.Millisecond
	RebootTimeout         = 2500 * time.Millisecond
	LineTimeout           = time.Second
	GuardDelay            = 100 * time.Millisecond
)
