package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"yt-monthly-report/internal/models"
)

const archiveFileName = "monthly_reports.json"

// ReportArchive keeps a local copy of recent monthly reports so trends can still be built when a
// month's sheet tab has been renamed or deleted. Reports are kept per channel, so several channels
// can share one data directory.
type ReportArchive struct {
	filePath   string
	reports    map[string]*models.MonthlyReport
	mu         sync.RWMutex
	keepMonths int
}

// NewReportArchive opens (or starts) the archive in dataDir, retaining at most keepMonths reports
// per channel.
func NewReportArchive(dataDir string, keepMonths int) (*ReportArchive, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create data directory")
	}

	archive := &ReportArchive{
		filePath:   filepath.Join(dataDir, archiveFileName),
		reports:    make(map[string]*models.MonthlyReport),
		keepMonths: keepMonths,
	}

	if err := archive.load(); err != nil {
		return nil, errors.Wrap(err, "failed to load report archive")
	}

	return archive, nil
}

func archiveKey(channelID string, month models.Month) string {
	return channelID + "/" + month.Key()
}

// Save stores report, replacing any earlier report for the same channel and month, and persists
// the archive.
func (a *ReportArchive) Save(report *models.MonthlyReport) error {
	if report == nil {
		return errors.New("report cannot be nil")
	}
	if report.ChannelID == "" {
		return errors.New("report has no channel ID")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.reports[archiveKey(report.ChannelID, report.Month)] = report
	a.prune()
	return a.save()
}

// Load returns channelID's archived reports for months, in the order given. Months with no
// archived report are left out.
func (a *ReportArchive) Load(channelID string, months []models.Month) []*models.MonthlyReport {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []*models.MonthlyReport
	for _, m := range months {
		if r, ok := a.reports[archiveKey(channelID, m)]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Count returns the number of archived reports across all channels.
func (a *ReportArchive) Count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.reports)
}

// prune drops each channel's oldest months beyond keepMonths. Callers hold the write lock.
func (a *ReportArchive) prune() {
	if a.keepMonths <= 0 {
		return
	}
	byChannel := make(map[string][]string)
	for _, k := range a.sortedKeys() {
		channel := a.reports[k].ChannelID
		byChannel[channel] = append(byChannel[channel], k)
	}
	for _, keys := range byChannel {
		if len(keys) <= a.keepMonths {
			continue
		}
		for _, k := range keys[:len(keys)-a.keepMonths] {
			delete(a.reports, k)
		}
	}
}

// sortedKeys returns keys grouped by channel, oldest month first; YYYY-MM keys sort
// chronologically.
func (a *ReportArchive) sortedKeys() []string {
	keys := make([]string, 0, len(a.reports))
	for k := range a.reports {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (a *ReportArchive) load() error {
	file, err := os.Open(a.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrap(err, "failed to open archive file")
	}
	defer file.Close()

	var reports []*models.MonthlyReport
	if err := json.NewDecoder(file).Decode(&reports); err != nil {
		return errors.Wrap(err, "failed to decode archive data")
	}

	for _, r := range reports {
		if r != nil && r.ChannelID != "" {
			a.reports[archiveKey(r.ChannelID, r.Month)] = r
		}
	}
	a.prune()
	return nil
}

// save replaces the archive file through a rename.
func (a *ReportArchive) save() error {
	reports := make([]*models.MonthlyReport, 0, len(a.reports))
	for _, k := range a.sortedKeys() {
		reports = append(reports, a.reports[k])
	}

	tmp := a.filePath + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(reports); err != nil {
		file.Close()
		return errors.Wrap(err, "failed to encode archive")
	}
	if err := file.Close(); err != nil {
		return errors.Wrap(err, "failed to close archive file")
	}

	return errors.Wrap(os.Rename(tmp, a.filePath), "failed to replace archive file")
}
