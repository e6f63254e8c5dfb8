package catalog

import (
	"strconv"

	"github.com/kailas-cloud/melodex/internal/domain"
)

// Hash field names for track records.
const (
	fieldName       = "name"
	fieldArtist     = "artist"
	fieldGenre      = "genre"
	fieldLyrics     = "lyrics"
	fieldPopularity = "popularity"
)

// trackFromFields maps a stored hash to a domain track. Feature fields that
// are missing or unparseable are simply absent from the vector; FeatureVector
// substitutes the neutral default on read.
func trackFromFields(trackID string, fields map[string]string) domain.Track {
	track := domain.Track{
		ID:       trackID,
		Name:     fields[fieldName],
		Artist:   fields[fieldArtist],
		Genre:    domain.Genre(fields[fieldGenre]),
		Lyrics:   fields[fieldLyrics],
		Features: domain.FeatureVector{},
	}
	if pop, err := strconv.Atoi(fields[fieldPopularity]); err == nil {
		track.Popularity = pop
	}
	for _, name := range domain.AudioFeatures {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		track.Features[name] = v
	}
	return track
}
