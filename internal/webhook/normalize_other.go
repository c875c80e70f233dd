package webhook

import "encoding/json"

func jsonUnmarshalLenient(data []byte, out *map[string]any) error {
	return json.Unmarshal(data, out)
}

// normalizeSentryEvent extracts a one-line alert summary from Sentry's
// nested data.event payload shape.
func normalizeSentryEvent(payload map[string]any, channel string) Event {
	data, _ := payload["data"].(map[string]any)
	event, _ := data["event"].(map[string]any)
	if event == nil {
		event = data
	}

	title := stringField(event, "title")
	if title == "" {
		title = stringField(payload, "message")
	}
	if title == "" {
		title = "Sentry alert"
	}

	project := stringField(payload, "project_name")
	if project == "" {
		project = stringField(payload, "project")
	}
	if project == "" {
		project = "unknown"
	}

	level := stringField(event, "level")
	if level == "" {
		level = "error"
	}

	return Event{
		Source:        "sentry",
		EventType:     "alert",
		Summary:       "[" + level + "] " + project + ": " + title,
		Payload:       payload,
		TargetChannel: channel,
	}
}

// normalizeGenericEvent covers any shared-secret endpoint with no
// source-specific shape.
func normalizeGenericEvent(payload map[string]any, channel string) Event {
	summary := stringField(payload, "summary")
	if summary == "" {
		summary = stringField(payload, "message")
	}
	if summary == "" {
		summary = "Webhook received"
	}

	eventType := stringField(payload, "event_type")
	if eventType == "" {
		eventType = "generic"
	}

	return Event{
		Source:        "generic",
		EventType:     eventType,
		Summary:       summary,
		Payload:       payload,
		TargetChannel: channel,
	}
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
