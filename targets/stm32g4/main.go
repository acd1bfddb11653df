//go:build tinygo

// Command stm32g4 boots the servo firmware on an STM32G4-class board:
// one TIM1-driven control cycle (C9) calling through C3-C4, a
// background loop servicing the AS5047 encoder poll and the
// register/RPC transport, and a UART bench console running the CLI.
package main

import (
	"device/stm32"
	"machine"
	"runtime/interrupt"
	"time"
	"unsafe"

	"bldcservo/config"
	"bldcservo/core"
	"bldcservo/encoder"
	"bldcservo/foc"
	"bldcservo/identity"
	"bldcservo/modes"
	"bldcservo/outer"
	"bldcservo/position"
	"bldcservo/protocol"
	"bldcservo/regmap"
	"bldcservo/register"
	"bldcservo/safety"
	"bldcservo/sampling"
	"bldcservo/sched"
	"bldcservo/targets/stm32g4/boardcfg"
)

const (
	commandUARTBus = 0 // USART1: binary register/RPC frames to the bench host
	consoleUARTBus = 1 // USART2: plain-text CLI console
	encoderSPIBus  = 0 // SPI1: AS5047 rotor angle source
)

var (
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport

	consoleRxBuf [64]byte
	consoleRxLen int
)

func main() {
	core.TimerInit()

	pwm := NewTIM1Driver()
	adc := NewAdcDriver()
	gpioDrv := NewGPIODriver()
	spiDrv := NewSPIDriver()
	i2cDrv := NewI2CDriver()
	uartDrv := NewUARTDriver()

	core.SetPWMDriver(pwm)
	core.SetInjectedADCDriver(adc)
	core.SetGPIODriver(gpioDrv)
	core.SetSPIDriver(spiDrv)
	core.SetI2CDriver(i2cDrv)
	core.SetUARTDriver(uartDrv)

	if _, err := pwm.ConfigurePWM(boardcfg.PWMPeriodTicks); err != nil {
		panic(err)
	}
	if err := adc.ConfigureInjectedSequence([]core.ADCChannel{0, 1, 2, 3, 4}); err != nil {
		panic(err)
	}
	if err := uartDrv.ConfigureBus(commandUARTBus, 921_600); err != nil {
		panic(err)
	}
	if err := uartDrv.ConfigureBus(consoleUARTBus, 115_200); err != nil {
		panic(err)
	}

	sampler, err := sampling.NewSampler(
		sampling.Channels{PhaseA: 0, PhaseB: 1, PhaseC: 2, BusVoltage: 3, FETTemp: 4},
		boardcfg.Calibration,
		boardcfg.ControlPeriod,
	)
	if err != nil {
		panic(err)
	}

	rotor := encoder.NewAS5047Source("rotor", encoderSPIBus)
	fusion := position.NewFusion(
		[]position.SourceConfig{{Source: rotor, Sign: 1, GearRatio: 1, PoleCount: boardcfg.PoleCount}},
		boardcfg.PositionPLLOmegaN, boardcfg.DisagreementThreshold,
	)

	torqueModel := &foc.TorqueModel{
		Kt: boardcfg.TorqueConstant, CurrentCutoffA: boardcfg.CurrentCutoffA,
		TorqueScale: 1, CurrentScale: 1,
	}
	currentLoop := &foc.CurrentLoop{
		IdPI: foc.PIController{Kp: boardcfg.CurrentKp, Ki: boardcfg.CurrentKi, Min: -boardcfg.MaxPhaseVoltage, Max: boardcfg.MaxPhaseVoltage},
		IqPI: foc.PIController{Kp: boardcfg.CurrentKp, Ki: boardcfg.CurrentKi, Min: -boardcfg.MaxPhaseVoltage, Max: boardcfg.MaxPhaseVoltage},
		DMin: 0, DMax: 1, SvmK: 0.57735, Torque: *torqueModel,
	}
	outerLoop := outer.NewLoop(boardcfg.OuterKp, boardcfg.OuterKd, boardcfg.OuterKi, boardcfg.OuterILimit, boardcfg.MaxDesiredRate, torqueModel)
	faultManager := safety.NewManager(boardcfg.FaultLimits)
	modeMachine := modes.NewMachine(boardcfg.CommandTimeout, boardcfg.StopTimeout)

	inductanceSweep := &outer.InductanceSweep{
		PulseVoltage: boardcfg.InductancePulseVoltage, PulseCycles: boardcfg.InductancePulseCycles,
	}
	currentCalSweep := &outer.CurrentCalibrationSweep{SampleCount: boardcfg.CurrentCalSampleCount}
	encoderCalSweep := outer.NewEncoderCalibrationSweep(
		boardcfg.EncoderCalTableSize, boardcfg.EncoderCalHoldCycles, boardcfg.EncoderCalCurrent,
	)

	controller := sched.NewController(sched.CycleConfig{
		Sampler: sampler, Fusion: fusion, CurrentLoop: currentLoop, OuterLoop: outerLoop,
		FaultManager: faultManager, ModeMachine: modeMachine, PWM: sched.NewCorePWMWriter(),
		InductanceSweep: inductanceSweep, CurrentCalSweep: currentCalSweep, EncoderCalSweep: encoderCalSweep,
		DT: boardcfg.ControlPeriod, PoleCount: boardcfg.PoleCount, EncoderSourcesTotal: 1,
		PositionRequired: true, ISROverrunFraction: boardcfg.FaultLimits.ISROverrunFraction,
	}, boardcfg.MotorSign)

	var vibrationMagnitude func() float32
	if vib, err := NewVibrationMonitor(i2cDrv); err != nil {
		// Optional diagnostic sensor; its absence never blocks boot.
		vibrationMagnitude = nil
	} else {
		vibrationMagnitude = vib.Magnitude
	}

	file := regmap.Build(regmap.Components{
		Identity:           identity.Record{ABI: boardcfg.ABIVersion, HardwareFamily: boardcfg.HardwareFamily, HardwareRev: boardcfg.HardwareRev, UID: readUniqueID(), BuildVersion: boardcfg.BuildVersion},
		Controller:         controller,
		OuterLoop:          outerLoop,
		CurrentLoop:        currentLoop,
		ModeMachine:        modeMachine,
		FaultManager:       faultManager,
		VibrationMagnitude: vibrationMagnitude,
	})
	cli := register.NewCLI(file)
	regmap.RegisterModeVerb(cli, regmap.Components{
		Controller: controller, ModeMachine: modeMachine, FaultManager: faultManager,
	})

	if blob, err := loadPersistedConfig(); err == nil {
		applyPersistedConfig(file, blob)
	}

	background := sched.NewBackgroundLoop(
		controller,
		[]sched.Poller{rotor},
		cli,
		uartLineSource{bus: consoleUARTBus},
		uartLineSink{bus: consoleUARTBus},
		boardcfg.WatchdogTickPeriod,
	)

	inputBuffer = protocol.NewFifoBuffer(256)
	outputBuffer = protocol.NewScratchOutput()
	transport = protocol.NewTransport(outputBuffer, func(frame []byte) error {
		req, err := protocol.DecodeFrame(frame)
		if err != nil {
			return err
		}
		reply := file.Apply(req, boardcfg.SelfBusAddress)
		body, err := protocol.EncodeFrame(reply)
		if err != nil {
			return err
		}
		transport.SendFrame(body)
		return nil
	})

	// Arm TIM1's update interrupt last, once every control-loop object
	// exists; ConfigureISRHandler installs RunCycle as the ISR body.
	ConfigureISRHandler(func() { controller.RunCycle() })

	for {
		func() {
			defer func() {
				_ = recover() // never let a background-loop panic take the ISR down with it
			}()

			drainCommandUART()
			background.RunOnce(boardcfg.BackgroundPollPeriod)
			flushCommandUART()
		}()
		time.Sleep(time.Duration(boardcfg.BackgroundPollPeriod*1e9) * time.Nanosecond)
	}
}

// drainCommandUART moves any bytes the command UART has received into
// the transport's input buffer and hands them to Transport.Receive.
func drainCommandUART() {
	uart := machine.UART1
	for uart.Buffered() > 0 {
		b, err := uart.ReadByte()
		if err != nil {
			break
		}
		inputBuffer.Write([]byte{b})
	}
	if inputBuffer.Available() > 0 {
		data := inputBuffer.Data()
		n := len(data)
		buf := protocol.NewSliceInputBuffer(data)
		transport.Receive(buf)
		consumed := n - buf.Available()
		if consumed > 0 {
			inputBuffer.Pop(consumed)
		}
	}
}

// flushCommandUART writes any pending reply/ACK bytes to the command UART.
func flushCommandUART() {
	result := outputBuffer.Result()
	if len(result) == 0 {
		return
	}
	machine.UART1.Write(result)
	outputBuffer.Reset()
}

// uartLineSource/uartLineSink adapt the bench console UART to
// sched.LineSource/LineSink's whole-line contract: lines are
// accumulated byte-by-byte and handed over on '\n'.
type uartLineSource struct{ bus core.UARTBusID }

func (s uartLineSource) NextLine() (string, bool) {
	uart := consoleUART(s.bus)
	for uart.Buffered() > 0 {
		b, err := uart.ReadByte()
		if err != nil {
			break
		}
		if b == '\n' {
			line := string(consoleRxBuf[:consoleRxLen])
			consoleRxLen = 0
			return line, true
		}
		if consoleRxLen < len(consoleRxBuf) {
			consoleRxBuf[consoleRxLen] = b
			consoleRxLen++
		}
	}
	return "", false
}

type uartLineSink struct{ bus core.UARTBusID }

func (s uartLineSink) WriteLine(line string) {
	consoleUART(s.bus).Write([]byte(line))
}

func consoleUART(bus core.UARTBusID) *machine.UART {
	switch bus {
	case 0:
		return machine.UART1
	case 1:
		return machine.UART2
	default:
		return machine.UART3
	}
}

// readUniqueID reads the STM32G4's factory-programmed 96-bit unique
// device id from its fixed memory address.
func readUniqueID() [12]byte {
	const uidBase = 0x1FFF7590
	var out [12]byte
	src := (*[12]byte)(unsafe.Pointer(uintptr(uidBase)))
	copy(out[:], src[:])
	return out
}

// loadPersistedConfig reads the TLV config blob from the reserved flash
// page; boardcfgConfigFlashAddr/boardcfgConfigFlashSize bound the region.
func loadPersistedConfig() (config.Blob, error) {
	buf := (*[boardcfgConfigFlashSize]byte)(unsafe.Pointer(uintptr(boardcfgConfigFlashAddr)))
	return config.Decode(buf[:])
}

// applyPersistedConfig pushes every decoded tag into the register file
// whose address matches, silently skipping tags no longer mapped.
func applyPersistedConfig(file *register.File, blob config.Blob) {
	for _, e := range blob.Entries {
		v, err := e.Float64()
		if err != nil {
			continue
		}
		_ = file.Set(e.Tag, v)
	}
}

const (
	boardcfgConfigFlashAddr = 0x0803F800 // last 2KB page of a 256KB flash part
	boardcfgConfigFlashSize = 2048
)

// ConfigureISRHandler wires handler as TIM1's update-event interrupt
// body and enables it in the NVIC. RunCycle itself stays free of
// interrupt-controller bookkeeping; this is the only place that touches it.
func ConfigureISRHandler(handler func()) {
	stm32.TIM1.DIER.SetBits(stm32.TIM_DIER_UIE)
	interrupt.New(stm32.IRQ_TIM1_UP_TIM16, func(interrupt.Interrupt) {
		if stm32.TIM1.SR.HasBits(stm32.TIM_SR_UIF) {
			stm32.TIM1.SR.ClearBits(stm32.TIM_SR_UIF)
			handler()
		}
	}).Enable()
}
