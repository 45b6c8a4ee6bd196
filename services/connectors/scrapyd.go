package connectors

import (
	"context"
	"fmt"
	"time"

	"surplus-backend/lib/telemetry"

	"github.com/go-resty/resty/v2"
)

// JobClient is the boundary to the external job-execution host.
type JobClient interface {
	ScheduleSpider(ctx context.Context, spider string, settings map[string]string) (string, error)
	FetchItems(ctx context.Context, jobID string) ([]ScrapedItem, error)
}

// SchedulingError means the job host refused to schedule a spider or did not
// return a job id.
type SchedulingError struct {
	Spider  string
	Message string
}

func (e *SchedulingError) Error() string {
	return fmt.Sprintf("failed to schedule spider %s: %s", e.Spider, e.Message)
}

// FetchError means the items endpoint was unreachable. A non-success HTTP
// status is NOT a FetchError: the job may simply still be running.
type FetchError struct {
	JobID string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("unable to fetch items for job %s: %s", e.JobID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ScrapydClient talks to a scrapyd-compatible job host.
type ScrapydClient struct {
	client  *resty.Client
	baseUrl string
	project string
}

func NewScrapydClient(baseUrl, project string) *ScrapydClient {
	if project == "" {
		project = "default"
	}

	client := resty.New()
	client.SetTimeout(time.Second * 30)
	telemetry.InstrumentResty(client, "connectors/scrapyd")

	return &ScrapydClient{
		client:  client,
		baseUrl: baseUrl,
		project: project,
	}
}

type scheduleResponse struct {
	Status  string `json:"status"`
	JobID   string `json:"jobid"`
	Message string `json:"message"`
}

func (c *ScrapydClient) ScheduleSpider(ctx context.Context, spider string, settings map[string]string) (string, error) {
	form := map[string]string{
		"project": c.project,
		"spider":  spider,
	}
	for key, value := range settings {
		if value != "" {
			form[key] = value
		}
	}

	var data scheduleResponse
	res, err := c.client.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&data).
		Post(c.baseUrl + "/schedule.json")
	if err != nil {
		return "", &SchedulingError{Spider: spider, Message: err.Error()}
	}
	if !res.IsSuccess() {
		return "", &SchedulingError{Spider: spider, Message: res.Status()}
	}
	if data.Status != "ok" || data.JobID == "" {
		message := data.Message
		if message == "" {
			message = "unknown error"
		}
		return "", &SchedulingError{Spider: spider, Message: message}
	}

	return data.JobID, nil
}

func (c *ScrapydClient) FetchItems(ctx context.Context, jobID string) ([]ScrapedItem, error) {
	var items []ScrapedItem
	res, err := c.client.R().
		SetContext(ctx).
		SetResult(&items).
		Get(fmt.Sprintf("%s/items/%s/%s.json", c.baseUrl, c.project, jobID))
	if err != nil {
		return nil, &FetchError{JobID: jobID, Err: err}
	}
	if !res.IsSuccess() {
		// no items yet, the job may still be running
		return nil, nil
	}
	return items, nil
}
