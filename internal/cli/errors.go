package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jimger/wizz-aycf-route-finder/internal/crawler"
	"github.com/jimger/wizz-aycf-route-finder/internal/provider"
	"github.com/jimger/wizz-aycf-route-finder/internal/session"
)

var ErrOriginRequired = errors.New("an origin airport is required (none given and no previous search cached)")

// describeError turns a terminal failure into the message shown to the user.
func describeError(err error, suggestedWait time.Duration) string {
	if provider.IsRateLimited(err) {
		msg := "rate limited by the provider, try again later"
		if suggestedWait > 0 {
			msg += fmt.Sprintf(" (wait at least %s)", suggestedWait.Round(time.Second))
		}
		return msg
	}

	var sessionErr *session.SessionError
	if errors.As(err, &sessionErr) {
		switch sessionErr.Cause {
		case session.ErrCauseWrongPage:
			return "the browser is not on the provider page; it has been sent there, retry once it has loaded"
		case session.ErrCauseNoRoutesFound:
			msg := sessionErr.Message
			if len(sessionErr.Suggestions) > 0 {
				msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(sessionErr.Suggestions, ", "))
			}
			return msg
		case session.ErrCauseEndpointUnavailable:
			return "could not read the search endpoint from the provider page; reload it and retry"
		default:
			return fmt.Sprintf("could not reach the provider page: %s", sessionErr.Message)
		}
	}

	var crawlerErr *crawler.CrawlerError
	if errors.As(err, &crawlerErr) {
		switch crawlerErr.Cause {
		case crawler.ErrCauseNoDestinations:
			return crawlerErr.Message
		case crawler.ErrCauseInterrupted:
			return "search interrupted"
		}
	}

	return err.Error()
}
