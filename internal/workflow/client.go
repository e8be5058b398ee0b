package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Job is the message pushed onto the work queue.
type Job struct {
	JobID        string                 `json:"job_id"`
	InstanceID   string                 `json:"instance_id,omitempty"`
	NodeName     string                 `json:"node_name,omitempty"`
	TaskName     string                 `json:"task_name,omitempty"`
	Payload      json.RawMessage        `json:"payload"`
	ExecID       string                 `json:"exec_id"`
	CreatedAt    int64                  `json:"created_at"`
	WorkflowID   string                 `json:"workflow_id"`
	IsTriggerJob bool                   `json:"is_trigger_job"`
	Trace        propagation.MapCarrier `json:"trace,omitempty"`
}

// Queue is the transport jobs are pushed onto.
type Queue interface {
	Push(ctx context.Context, msg []byte) error
}

// Client builds jobs from workflow snapshots and enqueues them.
type Client struct {
	queue  Queue
	tracer trace.Tracer
	now    func() time.Time
}

func NewClient(q Queue) *Client {
	return &Client{
		queue:  q,
		tracer: otel.Tracer("neco/workflow"),
		now:    time.Now,
	}
}

// TriggerRequest identifies the execution being dispatched.
type TriggerRequest struct {
	ExecutionID string
	SystemID    string // used as workflow_id when the snapshot has no id
	Snapshot    []byte
}

// TriggerExecution parses the snapshot, locates its trigger node and pushes
// one trigger job for it. The job payload is {"trigger": "manual",
// "timestamp": ...} overlaid with the node parameters.
func (c *Client) TriggerExecution(ctx context.Context, req TriggerRequest) (*Job, error) {
	ctx, span := c.tracer.Start(ctx, "workflow.trigger",
		trace.WithAttributes(attribute.String("execution.id", req.ExecutionID)),
	)
	defer span.End()

	def, err := Parse(req.Snapshot)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return nil, err
	}

	node, err := def.FindTrigger()
	if err != nil {
		span.SetStatus(codes.Error, "no trigger")
		return nil, err
	}
	span.SetAttributes(attribute.String("workflow.node", node.Name))

	now := c.now().UTC()
	payload, err := triggerPayload(node, now)
	if err != nil {
		return nil, err
	}

	workflowID := def.ID
	if workflowID == "" {
		workflowID = req.SystemID
	}

	job := &Job{
		JobID:        uuid.NewString(),
		InstanceID:   uuid.NewString(),
		NodeName:     node.Name,
		Payload:      payload,
		ExecID:       req.ExecutionID,
		CreatedAt:    now.Unix(),
		WorkflowID:   workflowID,
		IsTriggerJob: true,
	}
	if err := c.push(ctx, job); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "enqueue failed")
		return nil, err
	}
	return job, nil
}

// EnqueueTask pushes a named task that is not tied to a workflow node, such
// as a system activation.
func (c *Client) EnqueueTask(ctx context.Context, workflowID, taskName string, payload json.RawMessage) (*Job, error) {
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	job := &Job{
		JobID:      uuid.NewString(),
		TaskName:   taskName,
		Payload:    payload,
		CreatedAt:  c.now().UTC().Unix(),
		WorkflowID: workflowID,
	}
	if err := c.push(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (c *Client) push(ctx context.Context, job *Job) error {
	// Carry the trace so consumers can continue it.
	job.Trace = propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, job.Trace)
	if len(job.Trace) == 0 {
		job.Trace = nil
	}

	msg, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	if err := c.queue.Push(ctx, msg); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", job.JobID, err)
	}
	return nil
}

func triggerPayload(node *Node, now time.Time) (json.RawMessage, error) {
	payload := map[string]any{
		"trigger":   "manual",
		"timestamp": now.Format(time.RFC3339Nano),
	}
	if len(node.Parameters) > 0 {
		var params map[string]json.RawMessage
		// Non-object parameters are ignored.
		if err := json.Unmarshal(node.Parameters, &params); err == nil {
			for k, v := range params {
				payload[k] = v
			}
		}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return b, nil
}
