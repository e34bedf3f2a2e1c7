package result

import "math"

// Point is a position in page pixel coordinates, origin top-left.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Polygon is a closed outline given by its vertices. The closing edge is implicit.
type Polygon []Point

// Rect is an axis-aligned rectangle.
type Rect struct {
	X1, Y1 float64 // Top-left corner
	X2, Y2 float64 // Bottom-right corner
}

// RectPolygon returns the clockwise polygon of the rectangle (x1,y1)-(x2,y2).
func RectPolygon(x1, y1, x2, y2 float64) Polygon {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return Polygon{{x1, y1}, {x2, y1}, {x2, y2}, {x1, y2}}
}

// Bounds returns the axis-aligned bounding rectangle of p.
func (p Polygon) Bounds() Rect {
	if len(p) == 0 {
		return Rect{}
	}
	r := Rect{X1: p[0].X, Y1: p[0].Y, X2: p[0].X, Y2: p[0].Y}
	for _, pt := range p[1:] {
		r.X1 = math.Min(r.X1, pt.X)
		r.Y1 = math.Min(r.Y1, pt.Y)
		r.X2 = math.Max(r.X2, pt.X)
		r.Y2 = math.Max(r.Y2, pt.Y)
	}
	return r
}

// Area returns the unsigned area of p (shoelace formula).
func (p Polygon) Area() float64 {
	return math.Abs(signedArea(p))
}

func signedArea(p Polygon) float64 {
	if len(p) < 3 {
		return 0
	}
	var a float64
	for i := range p {
		j := (i + 1) % len(p)
		a += p[i].X*p[j].Y - p[j].X*p[i].Y
	}
	return a / 2
}

// Clamp returns a copy of p with every vertex moved inside [0,w]x[0,h].
func (p Polygon) Clamp(w, h int) Polygon {
	out := make(Polygon, len(p))
	for i, pt := range p {
		out[i] = Point{
			X: math.Max(0, math.Min(float64(w), pt.X)),
			Y: math.Max(0, math.Min(float64(h), pt.Y)),
		}
	}
	return out
}

// Within reports whether every vertex of p lies inside [0,w]x[0,h].
func (p Polygon) Within(w, h int) bool {
	for _, pt := range p {
		if pt.X < 0 || pt.Y < 0 || pt.X > float64(w) || pt.Y > float64(h) {
			return false
		}
	}
	return true
}

// IoU returns the intersection-over-union of a and b. Both polygons are treated as
// convex; detector output (rectangles and quadrilaterals) satisfies that.
func IoU(a, b Polygon) float64 {
	areaA, areaB := a.Area(), b.Area()
	if areaA == 0 || areaB == 0 {
		return 0
	}
	inter := intersect(a, b).Area()
	union := areaA + areaB - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// intersect clips subject by clip (Sutherland-Hodgman).
func intersect(subject, clip Polygon) Polygon {
	subject = counterClockwise(subject)
	clip = counterClockwise(clip)

	out := subject
	for i := range clip {
		if len(out) == 0 {
			break
		}
		a, b := clip[i], clip[(i+1)%len(clip)]
		in := out
		out = nil
		for j := range in {
			cur, prev := in[j], in[(j+len(in)-1)%len(in)]
			curIn, prevIn := inside(a, b, cur), inside(a, b, prev)
			switch {
			case curIn && prevIn:
				out = append(out, cur)
			case curIn && !prevIn:
				out = append(out, lineIntersection(prev, cur, a, b), cur)
			case !curIn && prevIn:
				out = append(out, lineIntersection(prev, cur, a, b))
			}
		}
	}
	return out
}

func counterClockwise(p Polygon) Polygon {
	if signedArea(p) >= 0 {
		return p
	}
	r := make(Polygon, len(p))
	for i := range p {
		r[i] = p[len(p)-1-i]
	}
	return r
}

// inside reports whether p lies on the left of (or on) the directed edge a->b.
func inside(a, b, p Point) bool {
	return (b.X-a.X)*(p.Y-a.Y)-(b.Y-a.Y)*(p.X-a.X) >= 0
}

func lineIntersection(p1, p2, a, b Point) Point {
	dx1, dy1 := p2.X-p1.X, p2.Y-p1.Y
	dx2, dy2 := b.X-a.X, b.Y-a.Y
	den := dx1*dy2 - dy1*dx2
	if den == 0 {
		return p2
	}
	t := ((a.X-p1.X)*dy2 - (a.Y-p1.Y)*dx2) / den
	return Point{X: p1.X + t*dx1, Y: p1.Y + t*dy1}
}
