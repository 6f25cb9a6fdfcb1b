package automation

import (
	"github.com/go-vgo/robotgo"

	"github.com/teslashibe/go-mimi/pkg/screen"
)

// RobotDriver sends real input events through robotgo.
type RobotDriver struct{}

// NewRobotDriver returns a driver for the local desktop.
func NewRobotDriver() *RobotDriver {
	return &RobotDriver{}
}

// Location implements Driver.
func (RobotDriver) Location() screen.Point {
	x, y := robotgo.Location()
	return screen.Point{X: x, Y: y}
}

// MoveTo implements Driver.
func (RobotDriver) MoveTo(p screen.Point) {
	robotgo.Move(p.X, p.Y)
}

// Click implements Driver.
func (RobotDriver) Click(button string, double bool) {
	robotgo.Click(button, double)
}

// TypeText implements Driver.
func (RobotDriver) TypeText(text string) {
	robotgo.TypeStr(text)
}

// KeyTap implements Driver.
func (RobotDriver) KeyTap(key string, modifiers ...string) error {
	if len(modifiers) == 0 {
		return robotgo.KeyTap(key)
	}
	return robotgo.KeyTap(key, modifiers)
}

// ScreenSize implements Driver.
func (RobotDriver) ScreenSize() screen.Size {
	w, h := robotgo.GetScreenSize()
	return screen.Size{W: w, H: h}
}

var _ Driver = RobotDriver{}
