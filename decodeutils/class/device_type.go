// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and IronCore contributors
// SPDX-License-Identifier: Apache-2.0

package class

// DeviceType combines class and subclass. Together with the programming interface
// it is usually enough to pick a driver.
type DeviceType int

const (
	Unknown DeviceType = iota

	// Devices built before class codes
	LegacyVGACompatible
	LegacyNotVGACompatible

	// Mass storage controllers
	SCSIBusController
	IDEController
	FloppyController
	IPIBusController
	RAIDController
	ATAController
	SATAController
	SASController
	NVMeController
	UFSController
	OtherMassStorageController

	// Network controllers
	EthernetController
	TokenRingController
	FDDIController
	ATMController
	ISDNController
	WorldFipController
	PICMGController
	OtherNetworkController

	// Display controllers
	VGACompatibleController
	XGAController
	ThreeDController
	OtherDisplayController

	// Multimedia devices
	VideoDevice
	AudioDevice
	TelephonyDevice
	OtherMultimediaDevice

	// Memory controllers
	RAMController
	FlashController
	OtherMemoryController

	// Bridges
	HostBridge
	ISABridge
	EISABridge
	MCABridge
	PCIPCIBridge
	PCMCIABridge
	NuBusBridge
	CardBusBridge
	RacewayBridge
	SemiTransparentPCIPCIBridge
	InfinibandPCIHostBridge
	OtherBridgeDevice

	// Simple communication controllers
	SerialController
	ParallelPort
	MultiportSerialController
	Modem
	GPIBController
	SmartCard
	OtherCommunicationsDevice

	// Generic system peripherals
	InterruptController
	DMAController
	SystemTimer
	RTCController
	GenericPCIHotPlugController
	SDHostController
	OtherSystemPeripheral

	// Input devices
	KeyboardController
	Digitizer
	MouseController
	ScannerController
	GameportController
	OtherInputController

	// Docking stations
	GenericDockingStation
	OtherDockingStation

	// Processors
	Processor386
	Processor486
	ProcessorPentium
	ProcessorAlpha
	ProcessorPowerPC
	ProcessorMIPS
	CoProcessor

	// Serial bus controllers
	FirewireController
	AccessBusController
	SSABusController
	USBController
	FibreChannelController
	SMBusController
	InfiniBandController
	IPMIController
	SERCOSController
	CANBusController

	// Wireless controllers
	IrDAController
	ConsumerIRController
	RFController
	BluetoothController
	BroadbandController
	Ethernet5GHzController
	Ethernet24GHzController
	OtherWirelessController

	// Intelligent I/O controllers
	IntelligentIOController

	// Satellite communication controllers
	TVSatelliteCommunicationsController
	AudioSatelliteCommunicationsController
	VoiceSatelliteCommunicationsController
	DataSatelliteCommunicationsController

	// Encryption controllers
	NetworkEncryptionController
	EntertainmentEncryptionController
	OtherEncryptionController

	// Data acquisition and signal processing controllers
	DPIOModule
	PerformanceCounter
	CommunicationsSynchronizationController
	ManagementCard
	OtherSignalProcessingController
)

var deviceTypes = map[[2]uint8]DeviceType{
	{0x00, 0x01}: LegacyVGACompatible,
	{0x00, 0x00}: LegacyNotVGACompatible,

	{0x01, 0x00}: SCSIBusController,
	{0x01, 0x01}: IDEController,
	{0x01, 0x02}: FloppyController,
	{0x01, 0x03}: IPIBusController,
	{0x01, 0x04}: RAIDController,
	{0x01, 0x05}: ATAController,
	{0x01, 0x06}: SATAController,
	{0x01, 0x07}: SASController,
	{0x01, 0x08}: NVMeController,
	{0x01, 0x09}: UFSController,
	{0x01, 0x80}: OtherMassStorageController,

	{0x02, 0x00}: EthernetController,
	{0x02, 0x01}: TokenRingController,
	{0x02, 0x02}: FDDIController,
	{0x02, 0x03}: ATMController,
	{0x02, 0x04}: ISDNController,
	{0x02, 0x05}: WorldFipController,
	{0x02, 0x06}: PICMGController,
	{0x02, 0x80}: OtherNetworkController,

	{0x03, 0x00}: VGACompatibleController,
	{0x03, 0x01}: XGAController,
	{0x03, 0x02}: ThreeDController,
	{0x03, 0x80}: OtherDisplayController,

	{0x04, 0x00}: VideoDevice,
	{0x04, 0x01}: AudioDevice,
	{0x04, 0x02}: TelephonyDevice,
	{0x04, 0x03}: OtherMultimediaDevice,

	{0x05, 0x00}: RAMController,
	{0x05, 0x01}: FlashController,
	{0x05, 0x02}: OtherMemoryController,

	{0x06, 0x00}: HostBridge,
	{0x06, 0x01}: ISABridge,
	{0x06, 0x02}: EISABridge,
	{0x06, 0x03}: MCABridge,
	{0x06, 0x04}: PCIPCIBridge,
	{0x06, 0x05}: PCMCIABridge,
	{0x06, 0x06}: NuBusBridge,
	{0x06, 0x07}: CardBusBridge,
	{0x06, 0x08}: RacewayBridge,
	{0x06, 0x09}: SemiTransparentPCIPCIBridge,
	{0x06, 0x0a}: InfinibandPCIHostBridge,
	{0x06, 0x80}: OtherBridgeDevice,

	{0x07, 0x00}: SerialController,
	{0x07, 0x01}: ParallelPort,
	{0x07, 0x02}: MultiportSerialController,
	{0x07, 0x03}: Modem,
	{0x07, 0x04}: GPIBController,
	{0x07, 0x05}: SmartCard,
	{0x07, 0x80}: OtherCommunicationsDevice,

	{0x08, 0x00}: InterruptController,
	{0x08, 0x01}: DMAController,
	{0x08, 0x02}: SystemTimer,
	{0x08, 0x03}: RTCController,
	{0x08, 0x04}: GenericPCIHotPlugController,
	{0x08, 0x05}: SDHostController,
	{0x08, 0x80}: OtherSystemPeripheral,

	{0x09, 0x00}: KeyboardController,
	{0x09, 0x01}: Digitizer,
	{0x09, 0x02}: MouseController,
	{0x09, 0x03}: ScannerController,
	{0x09, 0x04}: GameportController,
	{0x09, 0x80}: OtherInputController,

	{0x0a, 0x00}: GenericDockingStation,
	{0x0a, 0x80}: OtherDockingStation,

	{0x0b, 0x00}: Processor386,
	{0x0b, 0x01}: Processor486,
	{0x0b, 0x02}: ProcessorPentium,
	{0x0b, 0x10}: ProcessorAlpha,
	{0x0b, 0x20}: ProcessorPowerPC,
	{0x0b, 0x30}: ProcessorMIPS,
	{0x0b, 0x40}: CoProcessor,

	{0x0c, 0x00}: FirewireController,
	{0x0c, 0x01}: AccessBusController,
	{0x0c, 0x02}: SSABusController,
	{0x0c, 0x03}: USBController,
	{0x0c, 0x04}: FibreChannelController,
	{0x0c, 0x05}: SMBusController,
	{0x0c, 0x06}: InfiniBandController,
	{0x0c, 0x07}: IPMIController,
	{0x0c, 0x08}: SERCOSController,
	{0x0c, 0x09}: CANBusController,

	{0x0d, 0x00}: IrDAController,
	{0x0d, 0x01}: ConsumerIRController,
	{0x0d, 0x10}: RFController,
	{0x0d, 0x11}: BluetoothController,
	{0x0d, 0x12}: BroadbandController,
	{0x0d, 0x20}: Ethernet5GHzController,
	{0x0d, 0x21}: Ethernet24GHzController,
	{0x0d, 0x80}: OtherWirelessController,

	{0x0e, 0x00}: IntelligentIOController,

	{0x0f, 0x00}: TVSatelliteCommunicationsController,
	{0x0f, 0x01}: AudioSatelliteCommunicationsController,
	{0x0f, 0x02}: VoiceSatelliteCommunicationsController,
	{0x0f, 0x03}: DataSatelliteCommunicationsController,

	{0x10, 0x00}: NetworkEncryptionController,
	{0x10, 0x10}: EntertainmentEncryptionController,
	{0x10, 0x80}: OtherEncryptionController,

	{0x11, 0x00}: DPIOModule,
	{0x11, 0x01}: PerformanceCounter,
	{0x11, 0x10}: CommunicationsSynchronizationController,
	{0x11, 0x20}: ManagementCard,
	{0x11, 0x80}: OtherSignalProcessingController,
}

var deviceTypeNames = map[DeviceType]string{
	Unknown: "Unknown",

	LegacyVGACompatible:    "VGA compatible unclassified device",
	LegacyNotVGACompatible: "Non-VGA unclassified device",

	SCSIBusController:          "SCSI storage controller",
	IDEController:              "IDE interface",
	FloppyController:           "Floppy controller",
	IPIBusController:           "IPI bus controller",
	RAIDController:             "RAID bus controller",
	ATAController:              "ATA controller",
	SATAController:             "SATA controller",
	SASController:              "Serial Attached SCSI controller",
	NVMeController:             "Non-Volatile memory controller",
	UFSController:              "Universal Flash Storage controller",
	OtherMassStorageController: "Other mass storage controller",

	EthernetController:     "Ethernet controller",
	TokenRingController:    "Token ring controller",
	FDDIController:         "FDDI network controller",
	ATMController:          "ATM network controller",
	ISDNController:         "ISDN controller",
	WorldFipController:     "WorldFip controller",
	PICMGController:        "PICMG controller",
	OtherNetworkController: "Other network controller",

	VGACompatibleController: "VGA compatible controller",
	XGAController:           "XGA compatible controller",
	ThreeDController:        "3D controller",
	OtherDisplayController:  "Other display controller",

	VideoDevice:           "Video device",
	AudioDevice:           "Audio device",
	TelephonyDevice:       "Telephony device",
	OtherMultimediaDevice: "Other multimedia device",

	RAMController:         "RAM memory",
	FlashController:       "FLASH memory",
	OtherMemoryController: "Other memory controller",

	HostBridge:                  "Host bridge",
	ISABridge:                   "ISA bridge",
	EISABridge:                  "EISA bridge",
	MCABridge:                   "MicroChannel bridge",
	PCIPCIBridge:                "PCI bridge",
	PCMCIABridge:                "PCMCIA bridge",
	NuBusBridge:                 "NuBus bridge",
	CardBusBridge:               "CardBus bridge",
	RacewayBridge:               "RACEway bridge",
	SemiTransparentPCIPCIBridge: "Semi-transparent PCI-to-PCI bridge",
	InfinibandPCIHostBridge:     "InfiniBand to PCI host bridge",
	OtherBridgeDevice:           "Other bridge device",

	SerialController:          "Serial controller",
	ParallelPort:              "Parallel controller",
	MultiportSerialController: "Multiport serial controller",
	Modem:                     "Modem",
	GPIBController:            "GPIB controller",
	SmartCard:                 "Smart Card controller",
	OtherCommunicationsDevice: "Other communication device",

	InterruptController:         "PIC",
	DMAController:               "DMA controller",
	SystemTimer:                 "System timer",
	RTCController:               "RTC",
	GenericPCIHotPlugController: "PCI Hot-plug controller",
	SDHostController:            "SD Host controller",
	OtherSystemPeripheral:       "Other system peripheral",

	KeyboardController:   "Keyboard controller",
	Digitizer:            "Digitizer",
	MouseController:      "Mouse controller",
	ScannerController:    "Scanner controller",
	GameportController:   "Gameport controller",
	OtherInputController: "Other input controller",

	GenericDockingStation: "Generic docking station",
	OtherDockingStation:   "Other docking station",

	Processor386:     "386",
	Processor486:     "486",
	ProcessorPentium: "Pentium",
	ProcessorAlpha:   "Alpha",
	ProcessorPowerPC: "Power PC",
	ProcessorMIPS:    "MIPS",
	CoProcessor:      "Co-processor",

	FirewireController:     "FireWire (IEEE 1394)",
	AccessBusController:    "ACCESS Bus",
	SSABusController:       "SSA",
	USBController:          "USB controller",
	FibreChannelController: "Fibre Channel",
	SMBusController:        "SMBus",
	InfiniBandController:   "InfiniBand",
	IPMIController:         "IPMI interface",
	SERCOSController:       "SERCOS interface",
	CANBusController:       "CANBUS",

	IrDAController:          "IRDA controller",
	ConsumerIRController:    "Consumer IR controller",
	RFController:            "RF controller",
	BluetoothController:     "Bluetooth controller",
	BroadbandController:     "Broadband controller",
	Ethernet5GHzController:  "802.11a controller",
	Ethernet24GHzController: "802.11b controller",
	OtherWirelessController: "Other wireless controller",

	IntelligentIOController: "I2O",

	TVSatelliteCommunicationsController:    "Satellite TV controller",
	AudioSatelliteCommunicationsController: "Satellite audio communication controller",
	VoiceSatelliteCommunicationsController: "Satellite voice communication controller",
	DataSatelliteCommunicationsController:  "Satellite data communication controller",

	NetworkEncryptionController:       "Network and computing encryption device",
	EntertainmentEncryptionController: "Entertainment encryption device",
	OtherEncryptionController:         "Other encryption controller",

	DPIOModule:                              "DPIO module",
	PerformanceCounter:                      "Performance counters",
	CommunicationsSynchronizationController: "Communication synchronizer",
	ManagementCard:                          "Signal processing management",
	OtherSignalProcessingController:         "Other signal processing controller",
}

// TypeOf returns Unknown for unregistered pairs.
func TypeOf(class, subclass uint8) DeviceType {
	return deviceTypes[[2]uint8{class, subclass}]
}

func (t DeviceType) String() string {
	if name, ok := deviceTypeNames[t]; ok {
		return name
	}
	return deviceTypeNames[Unknown]
}

func (t DeviceType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// USBType is the register level interface of a USB controller.
type USBType int

const (
	UHCI USBType = iota
	OHCI
	EHCI
	XHCI
	OtherUSBInterface
	USBDevice
)

var usbTypes = map[uint8]USBType{
	0x00: UHCI,
	0x10: OHCI,
	0x20: EHCI,
	0x30: XHCI,
	0x80: OtherUSBInterface,
	0xfe: USBDevice,
}

// USBTypeOf maps the programming interface of a USB controller.
func USBTypeOf(progIF uint8) (USBType, bool) {
	t, ok := usbTypes[progIF]
	return t, ok
}

// USB reports the interface of c if it is a USB controller.
func (c Code) USB() (USBType, bool) {
	if TypeOf(c.Class, c.Subclass) != USBController {
		return 0, false
	}
	return USBTypeOf(c.ProgIF)
}

func (t USBType) String() string {
	switch t {
	case UHCI:
		return "UHCI"
	case OHCI:
		return "OHCI"
	case EHCI:
		return "EHCI"
	case XHCI:
		return "XHCI"
	case OtherUSBInterface:
		return "Other"
	case USBDevice:
		return "Device"
	}
	return "Unknown"
}
