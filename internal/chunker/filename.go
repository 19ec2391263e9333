package chunker

import (
	"regexp"
	"strconv"
	"time"
)

// Upload filenames carry the owning business identifiers:
// u{user}_{YYMMDDHH}_{post}_{collection}, e.g. u7_24010114_42_0000.mp4.
var filenameRe = regexp.MustCompile(`^u(\d+)_(\d{8})_(\d+)_(\d{4})`)

// SourceIDs are the identifiers parsed from an upload's base filename.
type SourceIDs struct {
	UserID         int64
	CreatedAt      time.Time
	PostID         int64
	CollectionCode string
}

// ParseSourceIDs extracts business identifiers from a playlist or upload base
// filename. The second return value is false when the name does not follow
// the pattern; callers then skip catalog reconciliation but the rest of the
// pipeline proceeds.
func ParseSourceIDs(name string) (SourceIDs, bool) {
	m := filenameRe.FindStringSubmatch(name)
	if m == nil {
		return SourceIDs{}, false
	}
	userID, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return SourceIDs{}, false
	}
	createdAt, err := time.Parse("06010215", m[2])
	if err != nil {
		return SourceIDs{}, false
	}
	postID, err := strconv.ParseInt(m[3], 10, 64)
	if err != nil {
		return SourceIDs{}, false
	}
	return SourceIDs{
		UserID:         userID,
		CreatedAt:      createdAt,
		PostID:         postID,
		CollectionCode: m[4],
	}, true
}
