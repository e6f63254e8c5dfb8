package domain

import (
	"fmt"
	"math"
	"strings"
)

// Genre is a catalog genre label.
type Genre string

// Catalog genres.
const (
	GenrePop        Genre = "pop"
	GenreRock       Genre = "rock"
	GenreHipHop     Genre = "hip-hop"
	GenreElectronic Genre = "electronic"
	GenreRNB        Genre = "r&b"
)

// Genres lists all catalog genres.
var Genres = []Genre{GenrePop, GenreRock, GenreHipHop, GenreElectronic, GenreRNB}

// Audio feature names.
const (
	FeatureDanceability     = "danceability"
	FeatureEnergy           = "energy"
	FeatureValence          = "valence"
	FeatureTempo            = "tempo"
	FeatureAcousticness     = "acousticness"
	FeatureInstrumentalness = "instrumentalness"
	FeatureSpeechiness      = "speechiness"
	FeatureLoudness         = "loudness"
)

// AudioFeatures lists the scoring-relevant feature names.
var AudioFeatures = []string{
	FeatureDanceability,
	FeatureEnergy,
	FeatureValence,
	FeatureTempo,
	FeatureAcousticness,
	FeatureInstrumentalness,
	FeatureSpeechiness,
	FeatureLoudness,
}

// NeutralFeatureValue is the catalog-wide neutral default substituted for
// missing features. Using the midpoint instead of zero keeps the similarity
// metric unbiased.
const NeutralFeatureValue = 0.5

// Natural domains for the two features that are not unit-range at the source.
const (
	tempoMin    = 0.0
	tempoMax    = 250.0
	loudnessMin = -60.0
	loudnessMax = 0.0
)

// FeatureVector maps a feature name to its normalized [0,1] value.
type FeatureVector map[string]float64

// Get returns the value of a feature, or the neutral default when missing.
func (fv FeatureVector) Get(name string) float64 {
	if v, ok := fv[name]; ok {
		return v
	}
	return NeutralFeatureValue
}

// Distance returns the normalized Euclidean distance to other over the given
// feature names, in [0,1]. Missing values read as the neutral default.
func (fv FeatureVector) Distance(other FeatureVector, names []string) float64 {
	if len(names) == 0 {
		return 0
	}
	var sum float64
	for _, name := range names {
		d := fv.Get(name) - other.Get(name)
		sum += d * d
	}
	// Each squared difference is at most 1, so dividing by len(names)
	// keeps the distance in [0,1].
	return clamp01(math.Sqrt(sum / float64(len(names))))
}

// NormalizeTempo min-max normalizes a raw BPM value into [0,1].
func NormalizeTempo(bpm float64) float64 {
	return clamp01((bpm - tempoMin) / (tempoMax - tempoMin))
}

// NormalizeLoudness min-max normalizes a raw dB value into [0,1].
func NormalizeLoudness(db float64) float64 {
	return clamp01((db - loudnessMin) / (loudnessMax - loudnessMin))
}

// Track is an immutable catalog entity. Created at ingestion time, never
// mutated by the ranking core.
type Track struct {
	ID         string
	Name       string
	Artist     string
	Genre      Genre
	Features   FeatureVector
	Lyrics     string // optional excerpt
	Popularity int
}

// Describe renders the track as text for the reranking service: name, artist,
// genre, notable characteristics, lyric excerpt if present.
func (t Track) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Song: %s by %s. Genre: %s.", t.Name, t.Artist, t.Genre)

	if traits := t.describeTraits(); len(traits) > 0 {
		fmt.Fprintf(&b, " Characteristics: %s.", strings.Join(traits, ", "))
	}
	if t.Lyrics != "" {
		excerpt := t.Lyrics
		if len(excerpt) > 300 {
			excerpt = excerpt[:300]
		}
		fmt.Fprintf(&b, " Lyrics excerpt: %s", excerpt)
	}
	return b.String()
}

func (t Track) describeTraits() []string {
	var traits []string

	switch energy := t.Features.Get(FeatureEnergy); {
	case energy > 0.7:
		traits = append(traits, "high energy")
	case energy < 0.3:
		traits = append(traits, "low energy")
	}
	switch valence := t.Features.Get(FeatureValence); {
	case valence > 0.7:
		traits = append(traits, "positive/happy")
	case valence < 0.3:
		traits = append(traits, "sad/melancholic")
	}
	if t.Features.Get(FeatureDanceability) > 0.7 {
		traits = append(traits, "very danceable")
	}
	if t.Features.Get(FeatureAcousticness) > 0.7 {
		traits = append(traits, "acoustic")
	}
	if t.Features.Get(FeatureInstrumentalness) > 0.5 {
		traits = append(traits, "mostly instrumental")
	}
	return traits
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
