package authflow

import "context"

func (c *Client) emitAudit(
	ctx context.Context,
	eventType string,
	flowID string,
	requestID string,
	success bool,
	userID string,
	failure *Failure,
	metadataBuilder func() map[string]string,
) {
	if c == nil || c.audit == nil {
		return
	}
	if requestID == "" {
		requestID = RequestIDFromContext(ctx)
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: c.now().UTC(),
		EventType: eventType,
		FlowID:    flowID,
		RequestID: requestID,
		UserID:    userID,
		Success:   success,
		Metadata:  metadata,
	}
	if failure != nil {
		event.Kind = failure.Kind.String()
		event.Error = failure.Message
	}

	c.audit.Emit(ctx, event)
}

// emitDiscarded records a response that arrived after its controller was disposed.
func (c *Client) emitDiscarded(ctx context.Context, fc flowCounters, flowID, requestID, operation string) {
	c.metricInc(MetricOutcomeDiscarded)
	c.metricInc(fc.discarded)
	c.logger.DebugContext(ctx, "authflow: discarding late outcome", "flow_id", flowID, "operation", operation)
	c.emitAudit(ctx, auditEventLateOutcomeDropped, flowID, requestID, false, "", nil, func() map[string]string {
		return map[string]string{
			"operation": operation,
		}
	})
}
