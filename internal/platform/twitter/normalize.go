package twitter

import (
	"errors"
	"strconv"

	"harvester/internal/models"
)

// ErrMissingTweetID is returned for statuses without an identifier.
var ErrMissingTweetID = errors.New("tweet without id")

// Normalize maps a tweet onto a record. Engagement counts the API omitted stay nil.
func Normalize(t Tweet) ([]models.Record, error) {
	id := t.IDStr
	if id == "" && t.ID != 0 {
		id = strconv.FormatInt(t.ID, 10)
	}

	if id == "" {
		return nil, ErrMissingTweetID
	}

	text := t.FullText
	if text == "" {
		text = t.Text
	}

	var link *string
	if t.User.ScreenName != "" {
		link = models.String("https://twitter.com/" + t.User.ScreenName + "/status/" + id)
	}

	return []models.Record{{
		ID:        id,
		Source:    t.User.ScreenName,
		Kind:      models.KindTweet,
		CreatedAt: t.CreatedAt,
		Text:      text,
		Lang:      t.Lang,
		URL:       link,
		Metrics: models.Metrics{
			LikeCount:  t.FavoriteCount,
			ShareCount: t.RetweetCount,
			ReplyCount: t.ReplyCount,
		},
		Attributes: t.Raw,
	}}, nil
}
