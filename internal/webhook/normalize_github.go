package webhook

import (
	"fmt"
	"strings"

	"github.com/google/go-github/v69/github"
)

// normalizeGitHubEvent parses the payload through go-github's typed event
// structs (falling back to a generic summary for event types it doesn't
// model here) rather than walking the raw JSON by hand.
func normalizeGitHubEvent(eventType string, rawBody []byte, channel string) Event {
	payload := map[string]any{}
	_ = jsonUnmarshalLenient(rawBody, &payload)

	parsed, err := github.ParseWebHook(eventType, rawBody)
	if err != nil {
		return Event{
			Source:        "github",
			EventType:     eventType,
			Summary:       fmt.Sprintf("GitHub %s event", eventType),
			Payload:       payload,
			TargetChannel: channel,
		}
	}

	summary := summarizeGitHubEvent(eventType, parsed)
	return Event{
		Source:        "github",
		EventType:     eventType,
		Summary:       summary,
		Payload:       payload,
		TargetChannel: channel,
	}
}

func summarizeGitHubEvent(eventType string, parsed any) string {
	switch ev := parsed.(type) {
	case *github.PushEvent:
		repo := ev.GetRepo().GetFullName()
		branch := strings.TrimPrefix(ev.GetRef(), "refs/heads/")
		pusher := ev.GetPusher().GetName()
		return fmt.Sprintf("%s pushed %d commit(s) to %s/%s", orUnknown(pusher), len(ev.Commits), orUnknown(repo), branch)

	case *github.PullRequestEvent:
		repo := ev.GetRepo().GetFullName()
		pr := ev.GetPullRequest()
		user := pr.GetUser().GetLogin()
		return fmt.Sprintf("%s %s PR #%d on %s: %s", orUnknown(user), ev.GetAction(), pr.GetNumber(), orUnknown(repo), pr.GetTitle())

	case *github.IssuesEvent:
		repo := ev.GetRepo().GetFullName()
		issue := ev.GetIssue()
		user := issue.GetUser().GetLogin()
		return fmt.Sprintf("%s %s issue #%d on %s: %s", orUnknown(user), ev.GetAction(), issue.GetNumber(), orUnknown(repo), issue.GetTitle())

	case *github.WorkflowRunEvent:
		repo := ev.GetRepo().GetFullName()
		run := ev.GetWorkflowRun()
		return fmt.Sprintf("Workflow '%s' %s on %s — %s", run.GetName(), ev.GetAction(), orUnknown(repo), run.GetConclusion())

	default:
		return fmt.Sprintf("GitHub %s event", eventType)
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
