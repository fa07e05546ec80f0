// CaptureFilter narrows the capture journal listing.
package dto

import "time"

type CaptureFilter struct {
	Station string
	Manual  *bool
	After   time.Time
	Before  time.Time
	Limit   int
}
