package models

import "time"

// PostTags is the fixed tag vocabulary.
var PostTags = []string{
	"JavaScript",
	"React",
	"Node.js",
	"Python",
	"TypeScript",
	"CSS",
	"HTML",
	"Vue",
	"Angular",
	"Database",
	"Firebase",
	"Next.js",
	"Tailwind",
	"APIs",
	"DSA",
	"System Design",
	"Open Source",
	"DevOps",
	"Security",
	"Testing",
	"Career",
	"Tutorial",
	"Question",
	"Discussion",
	"News",
	"General",
	"Community",
}

var knownTags = func() map[string]bool {
	m := make(map[string]bool, len(PostTags))
	for _, t := range PostTags {
		m[t] = true
	}
	return m
}()

// IsKnownTag reports whether tag belongs to the vocabulary.
func IsKnownTag(tag string) bool {
	return knownTags[tag]
}

// Reputation points awarded for forum actions.
const (
	ReputationCreatePost    = 5
	ReputationComment       = 2
	ReputationReceiveLike   = 1
	ReputationReceiveUnlike = -1
)

const (
	TrendingWindow = 7 * 24 * time.Hour
	TrendingLimit  = 20
)
