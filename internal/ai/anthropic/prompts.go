package anthropic

import "fmt"

// buildSegmentationPrompt creates the prompt for turning an audience
// description into structured segment criteria.
func buildSegmentationPrompt(description string) string {
	return fmt.Sprintf(`You are an email marketing analyst. Translate the audience description below into contact segmentation criteria.

Available criteria fields:
- min_engagement: minimum engagement score, integer 0-100
- max_engagement: maximum engagement score, integer 0-100
- active_within_days: only contacts who opened an email within this many days (0 means no recency constraint)
- subscribed_only: boolean, restrict to subscribed contacts

Guidelines:
- "highly engaged" or "active" audiences imply min_engagement of 70 or higher
- "at risk" or "dormant" audiences imply max_engagement of 30 or lower
- When the description mentions recency ("last month", "recently"), set active_within_days accordingly
- Default subscribed_only to true unless the description explicitly includes unsubscribed contacts

Audience description:
%s

Return ONLY a JSON object with this exact structure and no other text:

{
  "min_engagement": 0,
  "max_engagement": 100,
  "active_within_days": 0,
  "subscribed_only": true
}`, description)
}
