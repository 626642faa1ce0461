// Package draw implements the compact binary encoding for kind="draw"
// events (§6.4). The source system encodes these with the Rust "postcard"
// binary format; postcard has no Go equivalent in this stack, so the codec
// here is a small hand-rolled binary writer/reader over encoding/binary
// instead — still a bijection on the supported shape subset, which is the
// only contractual requirement.
package draw

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrUnsupportedShape is returned by Encode when the shape has no binary
// representation; callers fall back to storing only the structured `data`.
var ErrUnsupportedShape = errors.New("draw: unsupported shape")

// Point is a single 2D coordinate.
type Point struct {
	X, Y float64
}

// Rectangle is an axis-aligned box.
type Rectangle struct {
	X, Y, W, H float64
}

// Polyline is an ordered sequence of points.
type Polyline struct {
	Points []Point
}

// Ellipse is a center-radius ellipse.
type Ellipse struct {
	CX, CY, RX, RY float64
}

// Shape is any of the types Encode/Decode know how to round-trip.
type Shape interface {
	isShape()
}

func (Rectangle) isShape() {}
func (Polyline) isShape()  {}
func (Ellipse) isShape()   {}

const (
	tagRectangle byte = iota + 1
	tagPolyline
	tagEllipse
)

// Encode writes the binary form of shape. It returns ErrUnsupportedShape for
// any type not in the Shape set above.
func Encode(shape Shape) ([]byte, error) {
	buf := new(bytes.Buffer)

	switch s := shape.(type) {
	case Rectangle:
		buf.WriteByte(tagRectangle)
		writeFloats(buf, s.X, s.Y, s.W, s.H)
	case Polyline:
		buf.WriteByte(tagPolyline)
		if err := binary.Write(buf, binary.BigEndian, uint32(len(s.Points))); err != nil {
			return nil, err
		}
		for _, p := range s.Points {
			writeFloats(buf, p.X, p.Y)
		}
	case Ellipse:
		buf.WriteByte(tagEllipse)
		writeFloats(buf, s.CX, s.CY, s.RX, s.RY)
	default:
		return nil, ErrUnsupportedShape
	}

	return buf.Bytes(), nil
}

// Decode is the exact inverse of Encode.
func Decode(data []byte) (Shape, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("draw: empty payload")
	}

	buf := bytes.NewReader(data)
	tag, _ := buf.ReadByte()

	switch tag {
	case tagRectangle:
		fs, err := readFloats(buf, 4)
		if err != nil {
			return nil, err
		}
		return Rectangle{X: fs[0], Y: fs[1], W: fs[2], H: fs[3]}, nil
	case tagPolyline:
		var n uint32
		if err := binary.Read(buf, binary.BigEndian, &n); err != nil {
			return nil, err
		}
		var points []Point
		if n > 0 {
			points = make([]Point, n)
		}
		for i := range points {
			fs, err := readFloats(buf, 2)
			if err != nil {
				return nil, err
			}
			points[i] = Point{X: fs[0], Y: fs[1]}
		}
		return Polyline{Points: points}, nil
	case tagEllipse:
		fs, err := readFloats(buf, 4)
		if err != nil {
			return nil, err
		}
		return Ellipse{CX: fs[0], CY: fs[1], RX: fs[2], RY: fs[3]}, nil
	default:
		return nil, fmt.Errorf("draw: unknown shape tag %d", tag)
	}
}

func writeFloats(buf *bytes.Buffer, fs ...float64) {
	for _, f := range fs {
		binary.Write(buf, binary.BigEndian, f) //nolint:errcheck // bytes.Buffer never fails to write
	}
}

func readFloats(r *bytes.Reader, n int) ([]float64, error) {
	fs := make([]float64, n)
	for i := range fs {
		if err := binary.Read(r, binary.BigEndian, &fs[i]); err != nil {
			return nil, fmt.Errorf("draw: truncated payload: %w", err)
		}
	}
	return fs, nil
}

// ShapeFromMap reads a Shape back out of a decoded JSON event payload, the
// shape every draw event carries in its "data" field under a "shape" key.
func ShapeFromMap(data map[string]interface{}) (Shape, error) {
	kind, _ := data["shape"].(string)

	switch kind {
	case "rectangle":
		return Rectangle{
			X: floatField(data, "x"), Y: floatField(data, "y"),
			W: floatField(data, "w"), H: floatField(data, "h"),
		}, nil
	case "ellipse":
		return Ellipse{
			CX: floatField(data, "cx"), CY: floatField(data, "cy"),
			RX: floatField(data, "rx"), RY: floatField(data, "ry"),
		}, nil
	case "polyline":
		raw, _ := data["points"].([]interface{})
		points := make([]Point, 0, len(raw))
		for _, p := range raw {
			pm, ok := p.(map[string]interface{})
			if !ok {
				continue
			}
			points = append(points, Point{X: floatField(pm, "x"), Y: floatField(pm, "y")})
		}
		return Polyline{Points: points}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedShape, kind)
	}
}

// ShapeToMap is the inverse of ShapeFromMap, used when a draw event is read
// back from its binary encoding and needs to be re-exposed as JSON data.
func ShapeToMap(shape Shape) map[string]interface{} {
	switch s := shape.(type) {
	case Rectangle:
		return map[string]interface{}{"shape": "rectangle", "x": s.X, "y": s.Y, "w": s.W, "h": s.H}
	case Ellipse:
		return map[string]interface{}{"shape": "ellipse", "cx": s.CX, "cy": s.CY, "rx": s.RX, "ry": s.RY}
	case Polyline:
		points := make([]map[string]interface{}, len(s.Points))
		for i, p := range s.Points {
			points[i] = map[string]interface{}{"x": p.X, "y": p.Y}
		}
		return map[string]interface{}{"shape": "polyline", "points": points}
	default:
		return nil
	}
}

func floatField(m map[string]interface{}, key string) float64 {
	f, _ := m[key].(float64)
	return f
}
