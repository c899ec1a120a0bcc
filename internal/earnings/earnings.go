// Package earnings computes the mock reward shown on the earnings dashboard.
//
// Amounts are integer cents: a like is worth 1, a comment 2 and a repost 5,
// matching the 0.01 / 0.02 / 0.05 weights without floating point.
package earnings

import "fmt"

const (
	LikeCents    int64 = 1
	CommentCents int64 = 2
	RepostCents  int64 = 5
)

// Totals are engagement counters summed over a user's posts.
type Totals struct {
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
	Reposts  int64 `json:"reposts"`
}

// Cents is a fixed-point amount with two decimal places.
type Cents int64

func (c Cents) String() string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, int64(c)/100, int64(c)%100)
}

// Estimate returns likes*0.01 + comments*0.02 + reposts*0.05 in cents.
// Negative counters are treated as zero.
func Estimate(t Totals) Cents {
	return Cents(nonNeg(t.Likes)*LikeCents + nonNeg(t.Comments)*CommentCents + nonNeg(t.Reposts)*RepostCents)
}

// Add sums two totals.
func (t Totals) Add(o Totals) Totals {
	return Totals{
		Likes:    t.Likes + o.Likes,
		Comments: t.Comments + o.Comments,
		Reposts:  t.Reposts + o.Reposts,
	}
}

func nonNeg(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
