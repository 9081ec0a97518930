// Package batch enrolls many patients from one file, e.g. when a clinic
// moves its existing patients onto the tracker.
package batch

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	apperrors "github.com/gmsas95/recovery-tracker/internal/errors"
	"github.com/gmsas95/recovery-tracker/internal/recovery"
	"github.com/gmsas95/recovery-tracker/internal/security"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02"

// Enroller is the part of the tracker an import drives
type Enroller interface {
	Enroll(ctx context.Context, patientID string, surgeryType recovery.SurgeryType, startDate time.Time) (*recovery.Enrollment, error)
	Today() time.Time
}

type Processor struct {
	enroller Enroller
	config   Config
	limiter  *rate.Limiter
	logger   *zap.Logger
}

type Config struct {
	MaxConcurrency int
	Timeout        time.Duration
	SkipInvalid    bool

	// RatePerSecond caps enrollments per second, 0 means unlimited
	RatePerSecond float64
	Burst         int
}

type InputItem struct {
	ID          string `json:"id,omitempty" yaml:"id"`
	PatientID   string `json:"patient_id" yaml:"patient_id"`
	SurgeryType string `json:"surgery_type" yaml:"surgery_type"`
	StartDate   string `json:"start_date,omitempty" yaml:"start_date"`
}

type OutputItem struct {
	ID          string    `json:"id"`
	PatientID   string    `json:"patient_id"`
	SurgeryType string    `json:"surgery_type"`
	StartDate   string    `json:"start_date,omitempty"`
	Success     bool      `json:"success"`
	Skipped     bool      `json:"skipped,omitempty"`
	Code        string    `json:"code,omitempty"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type Result struct {
	Total     int           `json:"total"`
	Success   int           `json:"success"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration"`
	Items     []OutputItem  `json:"items"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
}

func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        10 * time.Second,
		SkipInvalid:    true,
	}
}

func NewProcessor(enroller Enroller, cfg Config, logger *zap.Logger) *Processor {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	p := &Processor{
		enroller: enroller,
		config:   cfg,
		logger:   logger,
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return p
}

// ProcessFile imports every row of inputPath and, when outputPath is set,
// writes the per-row outcome there.
func (p *Processor) ProcessFile(ctx context.Context, inputPath, outputPath string) (*Result, error) {
	items, err := p.loadInputFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load input file: %w", err)
	}

	result := p.Process(ctx, items)

	if outputPath != "" {
		if err := saveOutputFile(outputPath, result); err != nil {
			return result, fmt.Errorf("failed to save output file: %w", err)
		}
	}

	return result, nil
}

// Process enrolls items concurrently. Items keep their input order in the
// result regardless of completion order.
func (p *Processor) Process(ctx context.Context, items []InputItem) *Result {
	result := &Result{
		Total:     len(items),
		StartTime: time.Now(),
		Items:     make([]OutputItem, len(items)),
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < p.config.MaxConcurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				result.Items[idx] = p.processItem(ctx, items[idx])
			}
		}()
	}

	for idx := range items {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	for _, output := range result.Items {
		switch {
		case output.Success:
			result.Success++
		case output.Skipped:
			result.Skipped++
		default:
			result.Failed++
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	p.logger.Info("Enrollment import finished",
		zap.Int("total", result.Total),
		zap.Int("success", result.Success),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
		zap.Duration("duration", result.Duration),
	)
	return result
}

func (p *Processor) processItem(ctx context.Context, item InputItem) OutputItem {
	output := OutputItem{
		ID:          item.ID,
		PatientID:   item.PatientID,
		SurgeryType: item.SurgeryType,
		StartDate:   item.StartDate,
		Timestamp:   time.Now(),
	}

	if err := security.ValidatePatientID(item.PatientID); err != nil {
		return failed(output, apperrors.Invalid(apperrors.ErrBadRequest, "%v", err), p.config.SkipInvalid)
	}

	startDate := p.enroller.Today()
	if item.StartDate != "" {
		d, err := time.Parse(dateLayout, item.StartDate)
		if err != nil {
			return failed(output, apperrors.Invalid(apperrors.ErrBadRequest, "start_date must use the %s format", dateLayout), p.config.SkipInvalid)
		}
		startDate = d
	}
	output.StartDate = startDate.Format(dateLayout)

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return failed(output, err, false)
		}
	}

	enrollCtx := ctx
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		enrollCtx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	_, err := p.enroller.Enroll(enrollCtx, item.PatientID, recovery.SurgeryType(item.SurgeryType), startDate)
	if err != nil {
		// re-running an import leaves existing enrollments alone
		skip := errors.Is(err, apperrors.ErrAlreadyEnrolled)
		if !skip {
			p.logger.Warn("Failed to import enrollment",
				zap.String("id", item.ID),
				zap.String("patient_id", item.PatientID),
				zap.Error(err),
			)
		}
		return failed(output, err, skip)
	}

	output.Success = true
	return output
}

func failed(output OutputItem, err error, skip bool) OutputItem {
	output.Success = false
	output.Skipped = skip
	output.Code = apperrors.GetCode(err)
	output.Error = err.Error()
	return output
}

func (p *Processor) loadInputFile(path string) ([]InputItem, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var items []InputItem
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonl":
		items, err = p.loadJSON(file)
	case ".yaml", ".yml":
		items, err = loadYAML(file)
	default:
		items, err = p.loadText(file)
	}
	if err != nil {
		return nil, err
	}

	for i := range items {
		if items[i].ID == "" {
			items[i].ID = fmt.Sprintf("item-%d", i+1)
		}
	}
	return items, nil
}

// loadJSON reads either an array of objects or a stream of objects, one
// per line or back to back.
func (p *Processor) loadJSON(r io.Reader) ([]InputItem, error) {
	br := bufio.NewReader(r)
	if first, err := firstNonSpace(br); err == nil && first == '[' {
		var items []InputItem
		if err := json.NewDecoder(br).Decode(&items); err != nil {
			return nil, fmt.Errorf("failed to decode JSON: %w", err)
		}
		return items, nil
	}

	var items []InputItem
	decoder := json.NewDecoder(br)

	for decoder.More() {
		var item InputItem
		if err := decoder.Decode(&item); err != nil {
			if p.config.SkipInvalid {
				var syntaxErr *json.SyntaxError
				if errors.As(err, &syntaxErr) {
					return items, nil
				}
				continue
			}
			return nil, fmt.Errorf("failed to decode JSON: %w", err)
		}
		items = append(items, item)
	}

	return items, nil
}

func firstNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		if b != ' ' && b != '\t' && b != '\n' && b != '\r' {
			return b, br.UnreadByte()
		}
	}
}

func loadYAML(r io.Reader) ([]InputItem, error) {
	var items []InputItem
	if err := yaml.NewDecoder(r).Decode(&items); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode YAML: %w", err)
	}
	return items, nil
}

// loadText reads "patient_id surgery_type [start_date]" lines
func (p *Processor) loadText(r io.Reader) ([]InputItem, error) {
	var items []InputItem
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields) > 3 {
			if p.config.SkipInvalid {
				p.logger.Warn("Skipping malformed line", zap.Int("line", lineNum))
				continue
			}
			return nil, fmt.Errorf("line %d: expected patient_id surgery_type [start_date]", lineNum)
		}

		item := InputItem{
			ID:          fmt.Sprintf("line-%d", lineNum),
			PatientID:   fields[0],
			SurgeryType: fields[1],
		}
		if len(fields) == 3 {
			item.StartDate = fields[2]
		}
		items = append(items, item)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return items, nil
}

func saveOutputFile(path string, result *Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	for _, item := range result.Items {
		if err := encoder.Encode(item); err != nil {
			return err
		}
	}
	return nil
}

func (r *Result) Summary() string {
	var sb strings.Builder
	sb.WriteString("=== Enrollment Import Summary ===\n")
	sb.WriteString(fmt.Sprintf("Total:     %d\n", r.Total))
	sb.WriteString(fmt.Sprintf("Success:   %d\n", r.Success))
	sb.WriteString(fmt.Sprintf("Failed:    %d\n", r.Failed))
	sb.WriteString(fmt.Sprintf("Skipped:   %d\n", r.Skipped))
	sb.WriteString(fmt.Sprintf("Duration:  %v\n", r.Duration.Round(time.Millisecond)))
	return sb.String()
}
