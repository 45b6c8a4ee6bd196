package connectors

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"surplus-backend/lib/caseref"
	"surplus-backend/lib/caseschema"

	"go.opentelemetry.io/otel/codes"
)

// ItemFailure records one item that could not be ingested. Failures never
// advance the cursor candidate.
type ItemFailure struct {
	Item   ScrapedItem `json:"item"`
	Reason string      `json:"reason"`
}

// IngestResult summarizes one batch. Cursor is the last cursor observed on a
// successfully created or skipped item; empty means no advancement.
type IngestResult struct {
	Created  []StoredCaseRecord `json:"created"`
	Skipped  []StoredCaseRecord `json:"skipped"`
	Failures []ItemFailure      `json:"failures"`
	Cursor   string             `json:"cursor,omitempty"`
}

// Ingestor turns scraped items into validated, deduplicated case records.
type Ingestor struct {
	state StateStore
	gate  JurisdictionGate
}

func NewIngestor(state StateStore, gate JurisdictionGate) Ingestor {
	return Ingestor{state: state, gate: gate}
}

// DedupeKey is conclusive identity for a raw record. Two items with the same
// key are the same observation of the same property sale.
func DedupeKey(state, countyCode, propertyID, saleDate, rawSha256 string) string {
	if saleDate == "" {
		saleDate = "UNKNOWN"
	}
	return fmt.Sprintf("%s-%s-%s-%s-%s",
		strings.ToUpper(state),
		strings.ToUpper(countyCode),
		propertyID,
		saleDate,
		rawSha256,
	)
}

func rawChecksum(raw map[string]any) (string, error) {
	// json.Marshal sorts map keys, so equal payloads hash equally
	encoded, err := json.Marshal(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}

func saleDateOrNow(saleDate string) time.Time {
	if parsed, err := time.Parse("2006-01-02", saleDate); err == nil {
		return parsed
	}
	return time.Now().UTC()
}

// buildCase assembles the normalized case for one item, filling defaults the
// item did not provide. The item's own identity fields always win.
func buildCase(connector ConnectorConfig, item ScrapedItem) caseschema.Case {
	var record caseschema.Case
	if item.Normalized != nil {
		record = *item.Normalized
	}

	record.State = strings.ToUpper(item.State)
	record.CountyCode = strings.ToUpper(item.CountyCode)
	if record.CaseRef == "" {
		record.CaseRef = caseref.Generate(item.State, item.CountyCode, saleDateOrNow(item.SaleDate))
	}
	if record.SourceSystem == "" {
		record.SourceSystem = connector.SpiderName
	}
	if record.SaleDate == "" {
		record.SaleDate = item.SaleDate
	}
	if record.FiledAt == "" {
		if record.SaleDate != "" {
			record.FiledAt = record.SaleDate
		} else {
			record.FiledAt = time.Now().UTC().Format("2006-01-02")
		}
	}

	metadata := map[string]any{}
	for key, value := range record.Metadata {
		metadata[key] = value
	}
	metadata["property_id"] = item.PropertyID
	record.Metadata = metadata
	record.Raw = item.Raw

	return record
}

// IngestBatch processes every item in order. Item-level problems become
// ItemFailures rather than stopping the batch; only store errors abort.
func (ing Ingestor) IngestBatch(ctx context.Context, connector ConnectorConfig, items []ScrapedItem) (IngestResult, error) {
	ctx, span := tracer.Start(ctx, "IngestBatch")
	defer span.End()

	var result IngestResult
	for _, item := range items {
		rawSha := item.RawSha256
		if rawSha == "" {
			var err error
			rawSha, err = rawChecksum(item.Raw)
			if err != nil {
				result.Failures = append(result.Failures, ItemFailure{
					Item:   item,
					Reason: fmt.Sprintf("raw payload is not serializable: %s", err),
				})
				continue
			}
		}

		dedupeKey := DedupeKey(item.State, item.CountyCode, item.PropertyID, item.SaleDate, rawSha)
		existing, found, err := ing.state.FindCase(ctx, dedupeKey)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return IngestResult{}, err
		}
		if found {
			result.Skipped = append(result.Skipped, existing)
			if item.Cursor != "" {
				result.Cursor = item.Cursor
			}
			continue
		}

		if !ing.gate.IsEnabled(item.State, item.CountyCode) {
			result.Failures = append(result.Failures, ItemFailure{
				Item: item,
				Reason: fmt.Sprintf("jurisdiction %s/%s is not enabled for ingestion",
					strings.ToUpper(item.State), strings.ToUpper(item.CountyCode)),
			})
			continue
		}

		normalized := buildCase(connector, item)
		if err := normalized.Validate(); err != nil {
			result.Failures = append(result.Failures, ItemFailure{
				Item:   item,
				Reason: err.Error(),
			})
			continue
		}

		record := StoredCaseRecord{
			CaseRef:    normalized.CaseRef,
			Normalized: normalized,
			DedupeKey:  dedupeKey,
			Connector:  ConnectorKey{State: item.State, CountyCode: item.CountyCode},
			PropertyID: item.PropertyID,
			SaleDate:   item.SaleDate,
			RawSha256:  rawSha,
		}
		if err := ing.state.RememberCase(ctx, record); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return IngestResult{}, err
		}

		result.Created = append(result.Created, record)
		if item.Cursor != "" {
			result.Cursor = item.Cursor
		}
	}

	if len(result.Failures) > 0 {
		slog.WarnContext(ctx, "batch had item failures",
			"connector", connector.Key.String(),
			"failures", len(result.Failures),
			"created", len(result.Created))
	}
	return result, nil
}
