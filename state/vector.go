package state

import (
	"fmt"
	"math"
)

// Vec2 is a planar position or velocity in metres (or metres per second).
type Vec2 struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// InvalidPosition is returned when a node's position cannot be resolved.
var InvalidPosition = Vec2{X: -1, Y: -1}

func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Y: v.Y + o.Y}
}

func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{X: v.X - o.X, Y: v.Y - o.Y}
}

func (v Vec2) Scale(k float64) Vec2 {
	return Vec2{X: v.X * k, Y: v.Y * k}
}

func (v Vec2) Dot(o Vec2) float64 {
	return v.X*o.X + v.Y*o.Y
}

// Norm2 returns the squared length.
func (v Vec2) Norm2() float64 {
	return v.Dot(v)
}

func (v Vec2) Norm() float64 {
	return math.Sqrt(v.Norm2())
}

func (v Vec2) DistanceTo(o Vec2) float64 {
	return v.Sub(o).Norm()
}

func (v Vec2) String() string {
	return fmt.Sprintf("(%.2f, %.2f)", v.X, v.Y)
}
