package repository

import (
	"chroni/internal/db"
	"chroni/internal/model"
	"time"
)

const batchSize = 200

type HistoryRepository struct{}

func NewHistoryRepository() *HistoryRepository {
	return &HistoryRepository{}
}

// SaveRun stores one finished pass and a history row per outcome.
func (r *HistoryRepository) SaveRun(opts model.Options, report *model.Report) (model.Run, error) {
	run := model.Run{
		Src:        opts.SrcRoot,
		Dst:        opts.DstRoot,
		Mode:       string(opts.Mode),
		DryRun:     report.DryRun,
		Created:    report.Counts[model.ActionCreateDir],
		Copied:     report.Counts[model.ActionCopy],
		Skipped:    report.Counts[model.ActionSkip],
		Deleted:    report.Counts[model.ActionDelete],
		Failed:     report.Failed,
		Bytes:      report.Bytes,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
	}
	if err := db.DB.Create(&run).Error; err != nil {
		return run, err
	}

	if len(report.Outcomes) == 0 {
		return run, nil
	}

	now := time.Now()
	histories := make([]model.History, 0, len(report.Outcomes))
	for _, o := range report.Outcomes {
		status := model.StatusSuccess
		errMsg := ""
		if o.Err != nil {
			status = model.StatusFailed
			errMsg = o.Err.Error()
		}

		histories = append(histories, model.History{
			RunID:    run.ID,
			Status:   status,
			Action:   string(o.Action),
			Path:     o.RelPath,
			Reason:   string(o.Reason),
			ErrMsg:   errMsg,
			SyncedAt: now,
		})
	}

	return run, db.DB.CreateInBatches(&histories, batchSize).Error
}

type Stats struct {
	Runs    int64
	Total   int64
	Success int64
	Failed  int64
}

func (r *HistoryRepository) GetStats() (Stats, error) {
	var stats Stats
	if err := db.DB.Model(&model.Run{}).Count(&stats.Runs).Error; err != nil {
		return stats, err
	}

	if err := db.DB.Model(&model.History{}).Count(&stats.Total).Error; err != nil {
		return stats, err
	}

	if err := db.DB.Model(&model.History{}).
		Where("status = ?", model.StatusSuccess).
		Count(&stats.Success).Error; err != nil {
		return stats, err
	}

	stats.Failed = stats.Total - stats.Success
	return stats, nil
}

func (r *HistoryRepository) GetRecentRuns(limit int) ([]model.Run, error) {
	var runs []model.Run
	result := db.DB.
		Order("started_at desc").
		Order("id desc").
		Limit(limit).
		Find(&runs)

	return runs, result.Error
}

func (r *HistoryRepository) GetByRun(runID uint) ([]model.History, error) {
	var histories []model.History
	result := db.DB.
		Where("run_id = ?", runID).
		Order("id").
		Find(&histories)

	return histories, result.Error
}

func (r *HistoryRepository) GetFailed(runID uint) ([]model.History, error) {
	var histories []model.History
	result := db.DB.
		Where("run_id = ? AND status = ?", runID, model.StatusFailed).
		Order("id").
		Find(&histories)

	return histories, result.Error
}
