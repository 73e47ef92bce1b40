package quotes

import (
	"strings"

	"github.com/fxdesk/rfstrader/pkg/models"
)

// InferCancelSide guesses which side a cancel message targets from the
// quote id it references. The venue encodes the side in the id by loose
// convention only, so this is a heuristic: an empty result means "unknown,
// cancel nothing by side". Kept pure so the guesswork stays testable and
// out of the session path.
func InferCancelSide(quoteID string) models.QuoteSide {
	id := strings.ToUpper(quoteID)
	switch {
	case strings.HasSuffix(id, "B"):
		return models.SideBid
	case strings.HasSuffix(id, "O"):
		return models.SideOffer
	case strings.Contains(id, "BID"):
		return models.SideBid
	case strings.Contains(id, "OFR"), strings.Contains(id, "OFFER"):
		return models.SideOffer
	default:
		return ""
	}
}
