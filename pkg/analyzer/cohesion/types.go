package cohesion

import (
	"sort"
	"time"
)

// Cluster is a connected set of members. Members are listed in
// effective-member order.
type Cluster struct {
	Members []string `json:"members" toon:"members"`
	Unused  bool     `json:"unused,omitempty" toon:"unused,omitempty"`
}

// ClassMetrics represents cohesion and CK metrics for a single class.
type ClassMetrics struct {
	Class     string `json:"class" toon:"class"`
	Namespace string `json:"namespace,omitempty" toon:"namespace,omitempty"`
	Path      string `json:"path" toon:"path"`
	Line      int    `json:"line" toon:"line"`

	// Lack of Cohesion in Methods - number of communication clusters among
	// the class's members. 1 = fully cohesive, >1 = could be split.
	LCOM int `json:"lcom" toon:"lcom"`

	// Henderson-Sellers style lack of cohesion: 1 - sum(methods using each
	// field) / (fields * methods). -1 when there are no fields or methods.
	LCOMHS float64 `json:"lcom_hs" toon:"lcom_hs"`

	Clusters []Cluster `json:"clusters" toon:"clusters"`
	Unused   []string  `json:"unused,omitempty" toon:"unused,omitempty"`

	// Fingerprint identifies the partition independent of member order.
	Fingerprint string `json:"fingerprint" toon:"fingerprint"`

	// Coupling Between Objects - distinct declarations this class references
	CBO int `json:"cbo" toon:"cbo"`

	// Response For Class - own methods plus distinct foreign methods called
	RFC int `json:"rfc" toon:"rfc"`

	// Depth of Inheritance Tree
	DIT int `json:"dit" toon:"dit"`

	// Number of Children (direct subclasses)
	NOC int `json:"noc" toon:"noc"`

	// Number of methods, fields and constants
	NOM int `json:"nom" toon:"nom"`
	NOF int `json:"nof" toon:"nof"`
	NOK int `json:"nok" toon:"nok"`

	// Excluded is set for classes on an inheritance cycle.
	Excluded bool `json:"excluded,omitempty" toon:"excluded,omitempty"`

	CoupledClasses []string `json:"coupled_classes,omitempty" toon:"coupled_classes,omitempty"`
}

// Summary provides aggregate cohesion metrics.
type Summary struct {
	TotalClasses    int     `json:"total_classes" toon:"total_classes"`
	TotalFiles      int     `json:"total_files" toon:"total_files"`
	AvgLCOM         float64 `json:"avg_lcom" toon:"avg_lcom"`
	AvgCBO          float64 `json:"avg_cbo" toon:"avg_cbo"`
	AvgRFC          float64 `json:"avg_rfc" toon:"avg_rfc"`
	MaxLCOM         int     `json:"max_lcom" toon:"max_lcom"`
	MaxCBO          int     `json:"max_cbo" toon:"max_cbo"`
	MaxRFC          int     `json:"max_rfc" toon:"max_rfc"`
	MaxDIT          int     `json:"max_dit" toon:"max_dit"`
	UnusedMembers   int     `json:"unused_members" toon:"unused_members"`
	ExcludedClasses int     `json:"excluded_classes,omitempty" toon:"excluded_classes,omitempty"`

	// Classes with LCOM > 1 that may need refactoring
	LowCohesionCount int `json:"low_cohesion_count" toon:"low_cohesion_count"`
}

// Analysis represents the full cohesion analysis result.
type Analysis struct {
	GeneratedAt time.Time      `json:"generated_at" toon:"generated_at"`
	Classes     []ClassMetrics `json:"classes" toon:"classes"`
	Summary     Summary        `json:"summary" toon:"summary"`
}

// Class finds the metrics of a class by fully-qualified name.
func (c *Analysis) Class(fqn string) (*ClassMetrics, bool) {
	for i := range c.Classes {
		if c.Classes[i].Class == fqn {
			return &c.Classes[i], true
		}
	}
	return nil, false
}

// CalculateSummary computes summary statistics.
func (c *Analysis) CalculateSummary() {
	c.Summary = Summary{}
	if len(c.Classes) == 0 {
		return
	}

	files := make(map[string]bool)
	var totalLCOM, totalCBO, totalRFC int

	for _, cls := range c.Classes {
		files[cls.Path] = true
		totalLCOM += cls.LCOM
		totalCBO += cls.CBO
		totalRFC += cls.RFC
		c.Summary.UnusedMembers += len(cls.Unused)

		if cls.LCOM > c.Summary.MaxLCOM {
			c.Summary.MaxLCOM = cls.LCOM
		}
		if cls.CBO > c.Summary.MaxCBO {
			c.Summary.MaxCBO = cls.CBO
		}
		if cls.RFC > c.Summary.MaxRFC {
			c.Summary.MaxRFC = cls.RFC
		}
		if cls.DIT > c.Summary.MaxDIT {
			c.Summary.MaxDIT = cls.DIT
		}
		if cls.LCOM > 1 {
			c.Summary.LowCohesionCount++
		}
		if cls.Excluded {
			c.Summary.ExcludedClasses++
		}
	}

	n := float64(len(c.Classes))
	c.Summary.TotalClasses = len(c.Classes)
	c.Summary.TotalFiles = len(files)
	c.Summary.AvgLCOM = float64(totalLCOM) / n
	c.Summary.AvgCBO = float64(totalCBO) / n
	c.Summary.AvgRFC = float64(totalRFC) / n
}

// SortByLCOM sorts classes by LCOM in descending order (least cohesive first).
func (c *Analysis) SortByLCOM() {
	sort.SliceStable(c.Classes, func(i, j int) bool {
		return c.Classes[i].LCOM > c.Classes[j].LCOM
	})
}

// SortByCBO sorts classes by CBO in descending order (most coupled first).
func (c *Analysis) SortByCBO() {
	sort.SliceStable(c.Classes, func(i, j int) bool {
		return c.Classes[i].CBO > c.Classes[j].CBO
	})
}

// SortByRFC sorts classes by RFC in descending order.
func (c *Analysis) SortByRFC() {
	sort.SliceStable(c.Classes, func(i, j int) bool {
		return c.Classes[i].RFC > c.Classes[j].RFC
	})
}

// SortByDIT sorts classes by DIT in descending order (deepest inheritance first).
func (c *Analysis) SortByDIT() {
	sort.SliceStable(c.Classes, func(i, j int) bool {
		return c.Classes[i].DIT > c.Classes[j].DIT
	})
}

// SortByName sorts classes by fully-qualified name.
func (c *Analysis) SortByName() {
	sort.SliceStable(c.Classes, func(i, j int) bool {
		return c.Classes[i].Class < c.Classes[j].Class
	})
}
