package scenarios

import (
	"errors"
	"fmt"

	"github.com/kilianp07/smartcharge/core/model"
	"github.com/kilianp07/smartcharge/core/scheduler"
)

// Run schedules the scenario job against its forecast.
func Run(sc *Scenario) (model.SavingsProfile, error) {
	fc, err := sc.Forecast.ToModel()
	if err != nil {
		return model.SavingsProfile{}, err
	}
	return scheduler.Schedule(sc.Job.ToModel(), fc, Epoch)
}

// Check returns one message per expectation the run did not meet.
func Check(sc *Scenario, p model.SavingsProfile, err error) []string {
	var diffs []string
	if sc.Expected.Infeasible {
		if !errors.Is(err, scheduler.ErrInfeasible) {
			diffs = append(diffs, fmt.Sprintf("expected infeasible, got %v", err))
		}
		return diffs
	}
	if err != nil {
		return []string{fmt.Sprintf("unexpected error: %v", err)}
	}
	if p.Scenarios() != sc.Expected.Scenarios {
		diffs = append(diffs, fmt.Sprintf("scenarios: got %d, want %d", p.Scenarios(), sc.Expected.Scenarios))
	}
	if d := p.BestCostDelay(); d != sc.Expected.BestCostDelay {
		diffs = append(diffs, fmt.Sprintf("best cost delay: got %d, want %d", d, sc.Expected.BestCostDelay))
	}
	if d := p.BestEmissionDelay(); d != sc.Expected.BestEmissionDelay {
		diffs = append(diffs, fmt.Sprintf("best emission delay: got %d, want %d", d, sc.Expected.BestEmissionDelay))
	}
	return diffs
}
