package youtube

import (
	"errors"

	"harvester/internal/models"
	"harvester/internal/normalizer"
)

// ErrNotAVideo is returned for search results without a video id.
var ErrNotAVideo = errors.New("search result is not a video")

// WatchURL returns the public URL of a video.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// Normalize maps a search result and, when the lookup found it, its video
// details onto a record. Statistics the API did not report stay nil.
func Normalize(p *normalizer.Processor, item SearchResult, video *Video) ([]models.Record, error) {
	id := item.ID.VideoID
	if id == "" {
		return nil, ErrNotAVideo
	}

	snippet := item.Snippet

	var stats Statistics
	if video != nil {
		stats = video.Statistics

		if video.Snippet.PublishedAt != "" {
			snippet = video.Snippet
		}
	}

	return []models.Record{{
		ID:          id,
		Source:      snippet.ChannelTitle,
		Kind:        models.KindVideo,
		CreatedAt:   snippet.PublishedAt,
		Text:        snippet.Title,
		Description: models.Optional(snippet.Description),
		URL:         models.String(WatchURL(id)),
		Lang:        models.DefaultLang,
		Metrics: models.Metrics{
			ViewCount:    p.Count("viewCount", stats.ViewCount),
			LikeCount:    p.Count("likeCount", stats.LikeCount),
			DislikeCount: p.Count("dislikeCount", stats.DislikeCount),
			CommentCount: p.Count("commentCount", stats.CommentCount),
		},
	}}, nil
}
