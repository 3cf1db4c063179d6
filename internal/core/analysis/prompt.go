package analysis

import (
	"fmt"
	"strings"
	"time"
)

const describeFramePrompt = `You are looking at a single screenshot of a computer screen.
Describe in one or two short sentences what the user is doing: the application in focus, the content shown and the apparent task.
Do not speculate beyond what is visible.`

const mergePrompt = `Below are chronological descriptions of screenshots taken from one continuous screen recording.
Write a 1-2 sentence summary of what the user was doing during this period. Reply with the summary only.

%s`

const titlePrompt = `Write a short title (at most 8 words) for the following activity summary. Reply with the title only, without quotes.

%s`

const categoryPrompt = `Classify the following activity into exactly one of these categories:
%s

Activity: %s

Reply with the category name only.`

const distractionPrompt = `A user is expected to be working. Is the following activity a distraction from productive work?

Activity: %s

Reply with "yes" or "no" only.`

const cloudPrompt = `Watch this screen recording captured between %s and %s.
Describe what the user was doing and reply with strict JSON using exactly these fields:
{"title": string, "summary": string, "category": string, "isDistraction": boolean}

- title: at most 8 words
- summary: 1-2 sentences
- category: exactly one of %s
- isDistraction: true if the activity is a distraction from productive work

Reply with the JSON object only.`

func categoryList() string {
	names := make([]string, 0, len(Categories))
	for _, c := range Categories {
		names = append(names, string(c))
	}
	return strings.Join(names, ", ")
}

func buildMergePrompt(descriptions []string, offsets []time.Duration) string {
	var b strings.Builder
	for i, d := range descriptions {
		fmt.Fprintf(&b, "[%s] %s\n", formatOffset(offsets[i]), d)
	}
	return fmt.Sprintf(mergePrompt, strings.TrimSpace(b.String()))
}

func buildCloudPrompt(start, end time.Time) string {
	return fmt.Sprintf(cloudPrompt, start.Format(time.RFC3339), end.Format(time.RFC3339), categoryList())
}

func formatOffset(d time.Duration) string {
	s := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}
