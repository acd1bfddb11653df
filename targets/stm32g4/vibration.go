//go:build tinygo

package stm32g4

import (
	"errors"
	"machine"
	"math"

	"tinygo.org/x/drivers/adxl345"

	"bldcservo/core"
)

// vibrationI2CBus is the reference board's ADXL345 bus, bolted to the
// motor mount for bearing/mount wear diagnostics independent of the
// current-loop's electrical measurements. adxl345.New uses the sensor's
// fixed 0x53 address internally, so there's no address constant to pass.
const vibrationI2CBus core.I2CBusID = 2 // I2C3

// VibrationMonitor wraps an ADXL345 accelerometer mounted on the motor
// housing, following the same I2CDriver.GetMachineBus handoff the
// board's other TinyGo-drivers-repo sensors use.
type VibrationMonitor struct {
	sensor adxl345.Device
}

// NewVibrationMonitor configures the accelerometer on i2cDrv's bus. A
// 100Hz rate is enough to catch bearing chatter and mount looseness
// without competing with the current loop's ADC bandwidth.
func NewVibrationMonitor(i2cDrv *I2CDriver) (*VibrationMonitor, error) {
	if err := i2cDrv.ConfigureBus(vibrationI2CBus, 400_000); err != nil {
		return nil, err
	}
	handle, err := i2cDrv.GetMachineBus(vibrationI2CBus)
	if err != nil {
		return nil, err
	}
	i2c, ok := handle.(*machine.I2C)
	if !ok {
		return nil, errors.New("stm32g4: vibration monitor bus handle is not a machine.I2C")
	}

	sensor := adxl345.New(i2c)
	sensor.Configure()
	sensor.SetRate(adxl345.RATE_100HZ)
	sensor.SetRange(adxl345.RANGE_16G)

	return &VibrationMonitor{sensor: sensor}, nil
}

// Magnitude returns the instantaneous acceleration vector's magnitude
// in g, read fresh on every call; the register file calls it on each
// read of the vibration telemetry register, not from the ISR.
func (v *VibrationMonitor) Magnitude() float32 {
	x, y, z := v.sensor.ReadRawAcceleration()
	const countsPerG = 32768.0 / 16.0 // ±16g range over signed 16-bit counts
	fx := float32(x) / countsPerG
	fy := float32(y) / countsPerG
	fz := float32(z) / countsPerG
	return float32(math.Sqrt(float64(fx*fx + fy*fy + fz*fz)))
}
