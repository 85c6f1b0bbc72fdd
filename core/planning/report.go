package planning

import (
	"context"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// LoadReport describes how the weekly load is spread across active
// technicians. Utilization is committed hours divided by capacity.
type LoadReport struct {
	WeekStart         time.Time          `json:"week_start"`
	Technicians       int                `json:"technicians"`
	MeanUtilization   float64            `json:"mean_utilization"`
	StdDevUtilization float64            `json:"stddev_utilization"`
	MaxUtilization    float64            `json:"max_utilization"`
	MostLoaded        string             `json:"most_loaded,omitempty"`
	Utilization       map[string]float64 `json:"utilization"`
}

// LoadReport computes the utilization of every active technician for the
// current week.
func (o *Orchestrator) LoadReport(ctx context.Context) (LoadReport, error) {
	now := o.clock()
	techs, err := o.store.ListActiveTechnicians(ctx)
	if err != nil {
		return LoadReport{}, o.storeFailure("load_report", err)
	}
	start, _ := o.detector.WeekBoundsAt(now)
	rep := LoadReport{WeekStart: start, Technicians: len(techs), Utilization: make(map[string]float64, len(techs))}
	if len(techs) == 0 {
		return rep, nil
	}
	values := make([]float64, 0, len(techs))
	ids := make([]string, 0, len(techs))
	for _, tech := range techs {
		used, err := o.detector.WeeklyMinutes(ctx, tech.ID, now)
		if err != nil {
			return LoadReport{}, o.storeFailure("load_report", err)
		}
		u := 0.0
		if capMin := tech.CapacityMinutes(); capMin > 0 {
			u = used / capMin
		}
		rep.Utilization[tech.ID] = u
		values = append(values, u)
		ids = append(ids, tech.ID)
	}
	rep.MeanUtilization, rep.StdDevUtilization = stat.PopMeanStdDev(values, nil)
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return values[order[a]] > values[order[b]] })
	rep.MaxUtilization = values[order[0]]
	rep.MostLoaded = ids[order[0]]
	return rep, nil
}
