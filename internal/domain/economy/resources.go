package economy

import "math"

type ResourceKind int

const (
	Cash ResourceKind = iota
	Yield
	Alpha
	Tickets
	Mon
	Faith
)

var AllResources = []ResourceKind{Cash, Yield, Alpha, Tickets, Mon, Faith}

func (k ResourceKind) String() string {
	switch k {
	case Cash:
		return "cash"
	case Yield:
		return "yield"
	case Alpha:
		return "alpha"
	case Tickets:
		return "tickets"
	case Mon:
		return "mon"
	case Faith:
		return "faith"
	default:
		return "unknown"
	}
}

// Resources is the six-currency balance. Every field is always present.
type Resources struct {
	Cash    float64 `json:"cash" yaml:"cash"`
	Yield   float64 `json:"yield" yaml:"yield"`
	Alpha   float64 `json:"alpha" yaml:"alpha"`
	Tickets float64 `json:"tickets" yaml:"tickets"`
	Mon     float64 `json:"mon" yaml:"mon"`
	Faith   float64 `json:"faith" yaml:"faith"`
}

func (r Resources) Get(k ResourceKind) float64 {
	switch k {
	case Cash:
		return r.Cash
	case Yield:
		return r.Yield
	case Alpha:
		return r.Alpha
	case Tickets:
		return r.Tickets
	case Mon:
		return r.Mon
	case Faith:
		return r.Faith
	default:
		return 0
	}
}

func (r *Resources) Set(k ResourceKind, v float64) {
	switch k {
	case Cash:
		r.Cash = v
	case Yield:
		r.Yield = v
	case Alpha:
		r.Alpha = v
	case Tickets:
		r.Tickets = v
	case Mon:
		r.Mon = v
	case Faith:
		r.Faith = v
	}
}

func (r Resources) Add(o Resources) Resources {
	out := r
	for _, k := range AllResources {
		out.Set(k, r.Get(k)+o.Get(k))
	}
	return out
}

func (r Resources) Sub(o Resources) Resources {
	out := r
	for _, k := range AllResources {
		out.Set(k, r.Get(k)-o.Get(k))
	}
	return out
}

func (r Resources) Scale(f float64) Resources {
	out := r
	for _, k := range AllResources {
		out.Set(k, r.Get(k)*f)
	}
	return out
}

func (r Resources) IsZero() bool {
	for _, k := range AllResources {
		if r.Get(k) != 0 {
			return false
		}
	}
	return true
}

// ClampTo bounds every field to [0, caps].
func (r Resources) ClampTo(caps Resources) Resources {
	out := r
	for _, k := range AllResources {
		v := r.Get(k)
		if math.IsNaN(v) || v < 0 {
			v = 0
		}
		if c := caps.Get(k); v > c {
			v = c
		}
		out.Set(k, v)
	}
	return out
}

// Map renders the non-zero fields keyed by resource name.
func (r Resources) Map() map[string]float64 {
	out := map[string]float64{}
	for _, k := range AllResources {
		if v := r.Get(k); v != 0 {
			out[k.String()] = v
		}
	}
	return out
}

func ParseResourceKind(s string) (ResourceKind, bool) {
	for _, k := range AllResources {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}
