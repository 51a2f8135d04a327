// internal/service/station/catalog.go

package station

import "orcast/internal/domain/station"

// DefaultStations is the built-in Salish Sea hydrophone network
func DefaultStations() []station.HydrophoneStation {
	return []station.HydrophoneStation{
		{
			ID:          "orcasound-lab",
			Name:        "Orcasound Lab",
			Lat:         48.5583,
			Lng:         -123.1735,
			Region:      "San Juan Island",
			Description: "West side of San Juan Island, on the main Southern Resident travel corridor",
		},
		{
			ID:          "lime-kiln",
			Name:        "Lime Kiln",
			Lat:         48.5159,
			Lng:         -123.1523,
			Region:      "San Juan Island",
			Description: "Lime Kiln Point State Park, Haro Strait",
		},
		{
			ID:          "north-san-juan-channel",
			Name:        "North San Juan Channel",
			Lat:         48.5912,
			Lng:         -123.0587,
			Region:      "San Juan Island",
			Description: "Northern entrance of San Juan Channel",
		},
		{
			ID:          "port-townsend",
			Name:        "Port Townsend",
			Lat:         48.1358,
			Lng:         -122.7596,
			Region:      "Puget Sound",
			Description: "Port Townsend Marine Science Center pier, Admiralty Inlet",
		},
		{
			ID:          "bush-point",
			Name:        "Bush Point",
			Lat:         48.0336,
			Lng:         -122.6040,
			Region:      "Puget Sound",
			Description: "West shore of Whidbey Island, Admiralty Inlet",
		},
		{
			ID:          "sunset-bay",
			Name:        "Sunset Bay",
			Lat:         47.8608,
			Lng:         -122.3330,
			Region:      "Puget Sound",
			Description: "Mukilteo shoreline, Possession Sound",
		},
		{
			ID:          "point-robinson",
			Name:        "Point Robinson",
			Lat:         47.3886,
			Lng:         -122.3747,
			Region:      "Puget Sound",
			Description: "Maury Island lighthouse, central Puget Sound",
		},
	}
}
