package estimators

import (
	"fmt"
	"math"

	"gocausal/domain/core"
	"gocausal/domain/estimate"
	"gocausal/domain/panel"
	"gocausal/internal/regression"
)

// Default event window.
const (
	DefaultKMin  = -6
	DefaultKMax  = 12
	DefaultOmitK = -1
)

// EventStudyConfig configures an event study. A zero window (KMin == KMax
// == 0) selects the defaults [-6, 12]. OmitK names the baseline offset left
// out of the design; nil omits DefaultOmitK for any window. EventTimeCol
// defaults to the column derived by panel.WithEventTime.
type EventStudyConfig struct {
	UnitCol      string   `json:"unit_col"`
	TimeCol      string   `json:"time_col"`
	OutcomeCol   string   `json:"outcome_col"`
	TreatedCol   string   `json:"treated_col"`
	EventTimeCol string   `json:"event_time_col"`
	KMin         int      `json:"k_min"`
	KMax         int      `json:"k_max"`
	OmitK        *int     `json:"omit_k,omitempty"`
	Covariates   []string `json:"covariates"`
	ClusterCol   string   `json:"cluster_col,omitempty"`
}

func (c EventStudyConfig) window() (kMin, kMax, omit int) {
	kMin, kMax, omit = c.KMin, c.KMax, DefaultOmitK
	if kMin == 0 && kMax == 0 {
		kMin, kMax = DefaultKMin, DefaultKMax
	}
	if c.OmitK != nil {
		omit = *c.OmitK
	}
	return kMin, kMax, omit
}

// Omit returns an OmitK value naming offset k as the baseline.
func Omit(k int) *int { return &k }

// OffsetName is the regressor name of the treated x (event time == k) dummy.
func OffsetName(k int) string {
	switch {
	case k < 0:
		return fmt.Sprintf("k_m%d", -k)
	case k > 0:
		return fmt.Sprintf("k_p%d", k)
	default:
		return "k_0"
	}
}

// EventStudy fits one treated x (event time == k) dummy per offset in the
// window except the omitted baseline, plus treated, covariates and two-way
// fixed effects. Offsets without any treated observation are dropped and
// reported in UnidentifiedOffsets.
func EventStudy(f *panel.Frame, cfg EventStudyConfig) (*estimate.EventStudyResult, error) {
	kMin, kMax, omit := cfg.window()
	if kMin > kMax {
		return nil, core.NewInvalidInputError("event window", fmt.Sprintf("k_min %d > k_max %d", kMin, kMax))
	}
	treatedCol := orDefault(cfg.TreatedCol, panel.TreatedCol)

	y, err := f.Column(cfg.OutcomeCol)
	if err != nil {
		return nil, err
	}
	treated, err := f.Column(treatedCol)
	if err != nil {
		return nil, err
	}
	eventTime, err := f.Column(orDefault(cfg.EventTimeCol, panel.EventTimeCol))
	if err != nil {
		return nil, err
	}
	covs, err := regressors(f, cfg.Covariates)
	if err != nil {
		return nil, err
	}
	fe, err := twoWayEffects(f, cfg.UnitCol, cfg.TimeCol)
	if err != nil {
		return nil, err
	}
	cluster, err := clusterLabels(f, cfg.ClusterCol)
	if err != nil {
		return nil, err
	}

	regs := []regression.Regressor{{Name: treatedCol, Values: treated}}
	var offsets, unidentified []int
	for k := kMin; k <= kMax; k++ {
		if k == omit {
			continue
		}
		dummy := make([]float64, f.Len())
		seen := false
		for i := range dummy {
			if !math.IsNaN(eventTime[i]) && int(math.Round(eventTime[i])) == k && treated[i] != 0 {
				dummy[i] = treated[i]
				seen = true
			}
		}
		if !seen {
			unidentified = append(unidentified, k)
			continue
		}
		offsets = append(offsets, k)
		regs = append(regs, regression.Regressor{Name: OffsetName(k), Values: dummy})
	}
	if len(offsets) == 0 {
		return nil, core.NewUnidentifiedError(fmt.Sprintf("no treated observations at any offset in [%d, %d]", kMin, kMax))
	}
	if coversAllTreated(treated, eventTime, offsets) {
		return nil, core.NewUnidentifiedError(fmt.Sprintf(
			"offset dummies in [%d, %d] cover every treated observation; omit a baseline offset inside the window", kMin, kMax))
	}
	regs = append(regs, covs...)

	res, err := regression.Fit(regression.Spec{
		Y:          y,
		Regressors: regs,
		Absorb:     fe,
		Cluster:    cluster,
	})
	if err != nil {
		return nil, err
	}

	out := &estimate.EventStudyResult{
		CoefByK:     make(map[int]float64, len(offsets)),
		PByK:        make(map[int]float64, len(offsets)),
		SEByK:       make(map[int]float64, len(offsets)),
		KMin:        kMin,
		KMax:        kMax,
		OmitK:       omit,
		DFInference: res.DFInference,
	}
	var names []string
	for _, k := range offsets {
		c, err := res.Coefficient(OffsetName(k))
		if err != nil {
			// swept out by the fixed effects
			out.UnidentifiedOffsets = append(out.UnidentifiedOffsets, k)
			continue
		}
		out.Offsets = append(out.Offsets, k)
		names = append(names, c.Name)
		out.CoefByK[k] = c.Estimate
		out.PByK[k] = c.PValue
		out.SEByK[k] = c.StdErr
	}
	if len(out.Offsets) == 0 {
		return nil, core.NewUnidentifiedError("every event-time offset was absorbed by fixed effects")
	}
	out.UnidentifiedOffsets = mergeSorted(unidentified, out.UnidentifiedOffsets)

	out.Vcov, err = res.CovarianceOf(names)
	if err != nil {
		return nil, err
	}
	out.Summary = res.Summary(cfg.Covariates)
	return out, nil
}

func mergeSorted(a, b []int) []int {
	out := make([]int, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		if j >= len(b) || (i < len(a) && a[i] <= b[j]) {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// coversAllTreated reports whether every treated row falls on an estimated
// offset. The dummies then sum to the treated indicator, which the unit
// effects already span.
func coversAllTreated(treated, eventTime []float64, offsets []int) bool {
	in := make(map[int]struct{}, len(offsets))
	for _, k := range offsets {
		in[k] = struct{}{}
	}
	for i, d := range treated {
		if d == 0 {
			continue
		}
		if math.IsNaN(eventTime[i]) {
			return false
		}
		if _, ok := in[int(math.Round(eventTime[i]))]; !ok {
			return false
		}
	}
	return true
}
