package captcha

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// SolverClient talks to an anti-captcha style task API: createTask opens a
// solving task, getTaskResult is polled until the solution is ready.
type SolverClient struct {
	apiKey       string
	http         *resty.Client
	limiter      *rate.Limiter
	pollInterval time.Duration
	logger       *logrus.Entry
}

// NewSolverClient creates a client for the solver service at baseURL
func NewSolverClient(baseURL, apiKey string, pollInterval time.Duration, logger *logrus.Logger) *SolverClient {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &SolverClient{
		apiKey: apiKey,
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(30 * time.Second).
			SetHeader("Content-Type", "application/json"),
		limiter:      rate.NewLimiter(rate.Every(1*time.Second), 2),
		pollInterval: pollInterval,
		logger:       logger.WithField("component", "captcha-solver"),
	}
}

type solverTask struct {
	Type       string `json:"type"`
	WebsiteURL string `json:"websiteURL"`
	WebsiteKey string `json:"websiteKey"`
}

type createTaskRequest struct {
	ClientKey string     `json:"clientKey"`
	Task      solverTask `json:"task"`
}

type createTaskResponse struct {
	ErrorID          int    `json:"errorId"`
	ErrorCode        string `json:"errorCode"`
	ErrorDescription string `json:"errorDescription"`
	TaskID           int64  `json:"taskId"`
}

type taskResultRequest struct {
	ClientKey string `json:"clientKey"`
	TaskID    int64  `json:"taskId"`
}

type taskResultResponse struct {
	ErrorID          int    `json:"errorId"`
	ErrorCode        string `json:"errorCode"`
	ErrorDescription string `json:"errorDescription"`
	Status           string `json:"status"`
	Solution         struct {
		GRecaptchaResponse string `json:"gRecaptchaResponse"`
	} `json:"solution"`
}

// Solve submits the challenge and polls until a token is ready. The caller
// bounds the total wait through ctx.
func (c *SolverClient) Solve(ctx context.Context, siteKey, pageURL string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("solver api key is not configured")
	}
	if siteKey == "" {
		return "", fmt.Errorf("captcha site key is not configured")
	}

	taskID, err := c.createTask(ctx, siteKey, pageURL)
	if err != nil {
		return "", err
	}

	c.logger.WithField("task_id", taskID).Debug("Captcha task created")

	for {
		if err := sleep(ctx, c.pollInterval); err != nil {
			return "", fmt.Errorf("solver poll interrupted: %w", err)
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("solver poll interrupted: %w", err)
		}

		token, ready, err := c.taskResult(ctx, taskID)
		if err != nil {
			return "", err
		}
		if ready {
			c.logger.WithField("task_id", taskID).Info("Captcha task solved")
			return token, nil
		}
	}
}

func (c *SolverClient) createTask(ctx context.Context, siteKey, pageURL string) (int64, error) {
	var out createTaskResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(createTaskRequest{
			ClientKey: c.apiKey,
			Task: solverTask{
				Type:       "RecaptchaV2TaskProxyless",
				WebsiteURL: pageURL,
				WebsiteKey: siteKey,
			},
		}).
		SetResult(&out).
		Post("/createTask")
	if err != nil {
		return 0, fmt.Errorf("createTask request failed: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("createTask returned status %d", resp.StatusCode())
	}
	if out.ErrorID != 0 {
		return 0, fmt.Errorf("createTask rejected: %s (%s)", out.ErrorCode, out.ErrorDescription)
	}
	return out.TaskID, nil
}

func (c *SolverClient) taskResult(ctx context.Context, taskID int64) (string, bool, error) {
	var out taskResultResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(taskResultRequest{ClientKey: c.apiKey, TaskID: taskID}).
		SetResult(&out).
		Post("/getTaskResult")
	if err != nil {
		return "", false, fmt.Errorf("getTaskResult request failed: %w", err)
	}
	if resp.IsError() {
		return "", false, fmt.Errorf("getTaskResult returned status %d", resp.StatusCode())
	}
	if out.ErrorID != 0 {
		return "", false, fmt.Errorf("getTaskResult rejected: %s (%s)", out.ErrorCode, out.ErrorDescription)
	}
	if out.Status == "ready" {
		return out.Solution.GRecaptchaResponse, true, nil
	}
	return "", false, nil
}
