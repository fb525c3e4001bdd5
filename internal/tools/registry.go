// In file: internal/tools/registry.go
package tools

// Tool names. Every name here must have a handler in the Executor's dispatch
// table and vice versa; NewExecutor refuses to start otherwise.
const (
	SearchListings      Name = "search_listings"
	SearchPlaces        Name = "search_places"
	SearchMarket        Name = "search_market"
	SearchEvents        Name = "search_events"
	GetMyFavorites      Name = "get_my_favorites"
	GetCommunityPosts   Name = "get_community_posts"
	CreateCommunityPost Name = "create_community_post"
	CreateListing       Name = "create_listing"
	CreateEvent         Name = "create_event"
	RSVPEvent           Name = "rsvp_event"
)

var (
	listingCategories = []string{"apartment", "house", "room", "villa", "studio"}
	placeCategories   = []string{"cafe", "restaurant", "coworking", "gym", "beach", "bar", "shop", "service"}
	itemConditions    = []string{"new", "like_new", "used"}
	favoriteTypes     = []string{"listing", "place", "market_item", "event"}
	rsvpStatuses      = []string{"going", "interested", "not_going"}
)

func limitParam() *JSONSchema {
	return &JSONSchema{Type: "integer", Description: "Maximum number of results (default 5, at most 20)."}
}

func str(description string) *JSONSchema {
	return &JSONSchema{Type: "string", Description: description}
}

func num(description string) *JSONSchema {
	return &JSONSchema{Type: "number", Description: description}
}

func enum(description string, values []string) *JSONSchema {
	return &JSONSchema{Type: "string", Description: description, Enum: values}
}

var registry = []Tool{
	NewFunctionTool(
		SearchListings,
		"Search rental and sale housing listings in Da Nang (apartments, houses, rooms, villas, studios). Use it when the user looks for a place to live.",
		JSONSchema{
			Type: "object",
			Properties: map[string]*JSONSchema{
				"category":  enum("Type of housing.", listingCategories),
				"district":  str("District of Da Nang, e.g. Son Tra, Ngu Hanh Son, Hai Chau."),
				"min_price": num("Minimum monthly price in USD."),
				"max_price": num("Maximum monthly price in USD."),
				"bedrooms":  {Type: "integer", Description: "Minimum number of bedrooms."},
				"query":     str("Free text matched against the listing title."),
				"limit":     limitParam(),
			},
		},
	),
	NewFunctionTool(
		SearchPlaces,
		"Search places in Da Nang such as cafes, restaurants, coworking spaces, gyms, beaches, bars and services.",
		JSONSchema{
			Type: "object",
			Properties: map[string]*JSONSchema{
				"category": enum("Kind of place.", placeCategories),
				"district": str("District of Da Nang."),
				"query":    str("Free text matched against the place name."),
				"limit":    limitParam(),
			},
		},
	),
	NewFunctionTool(
		SearchMarket,
		"Search the second-hand marketplace (bikes, furniture, electronics and other items sold by expats).",
		JSONSchema{
			Type: "object",
			Properties: map[string]*JSONSchema{
				"category":  str("Item category, e.g. bike, furniture, electronics."),
				"query":     str("Free text matched against the item title."),
				"max_price": num("Maximum price in USD."),
				"condition": enum("Condition of the item.", itemConditions),
				"limit":     limitParam(),
			},
		},
	),
	NewFunctionTool(
		SearchEvents,
		"Search upcoming community events, meetups and activities.",
		JSONSchema{
			Type: "object",
			Properties: map[string]*JSONSchema{
				"category":  str("Event category, e.g. meetup, sport, language_exchange."),
				"query":     str("Free text matched against the event title."),
				"from_date": str("Only events starting on or after this date (YYYY-MM-DD). Defaults to today."),
				"limit":     limitParam(),
			},
		},
	),
	NewFunctionTool(
		GetMyFavorites,
		"List the items the current user saved to favorites.",
		JSONSchema{
			Type: "object",
			Properties: map[string]*JSONSchema{
				"item_type": enum("Only favorites of this kind.", favoriteTypes),
				"limit":     limitParam(),
			},
		},
	),
	NewFunctionTool(
		GetCommunityPosts,
		"Read the latest posts of the community feed.",
		JSONSchema{
			Type: "object",
			Properties: map[string]*JSONSchema{
				"topic": str("Only posts with this topic."),
				"limit": limitParam(),
			},
		},
	),
	NewFunctionTool(
		CreateCommunityPost,
		"Publish a post to the community feed on behalf of the current user.",
		JSONSchema{
			Type: "object",
			Properties: map[string]*JSONSchema{
				"body":  str("Text of the post."),
				"title": str("Optional short title."),
				"topic": str("Optional topic, e.g. housing, visa, food. Defaults to general."),
			},
			Required: []string{"body"},
		},
	),
	NewFunctionTool(
		CreateListing,
		"Create a housing listing owned by the current user.",
		JSONSchema{
			Type: "object",
			Properties: map[string]*JSONSchema{
				"title":       str("Listing title."),
				"category":    enum("Type of housing.", listingCategories),
				"description": str("Longer description."),
				"price":       num("Monthly price in USD."),
				"district":    str("District of Da Nang."),
				"location":    str("Street address or landmark."),
				"contact":     str("How to reach the owner."),
				"bedrooms":    {Type: "integer", Description: "Number of bedrooms."},
			},
			Required: []string{"title", "category"},
		},
	),
	NewFunctionTool(
		CreateEvent,
		"Create a community event organised by the current user.",
		JSONSchema{
			Type: "object",
			Properties: map[string]*JSONSchema{
				"title":       str("Event title."),
				"starts_at":   str("Start date and time, YYYY-MM-DD or YYYY-MM-DDTHH:MM."),
				"description": str("What the event is about."),
				"category":    str("Event category."),
				"location":    str("Where the event takes place."),
				"price":       num("Entry price in USD, 0 when free."),
				"contact":     str("Contact of the organiser."),
			},
			Required: []string{"title", "starts_at"},
		},
	),
	NewFunctionTool(
		RSVPEvent,
		"Register the current user's attendance for an event.",
		JSONSchema{
			Type: "object",
			Properties: map[string]*JSONSchema{
				"event_id": str("Identifier of the event, as returned by search_events."),
				"status":   enum("Attendance status, defaults to going.", rsvpStatuses),
			},
			Required: []string{"event_id"},
		},
	),
}

// ListTools returns every tool the agent knows, in a stable order. The result
// is a deep copy; callers may modify it.
func ListTools() []Tool {
	out := make([]Tool, len(registry))
	for i, t := range registry {
		out[i] = t.clone()
	}
	return out
}

// Definitions returns the registry filtered to the enabled names, keeping
// registry order. Names that are not in the registry are ignored.
func Definitions(enabled []string) []Tool {
	on := make(map[Name]bool, len(enabled))
	for _, n := range enabled {
		on[Name(n)] = true
	}
	var out []Tool
	for _, t := range registry {
		if on[t.Function.Name] {
			out = append(out, t.clone())
		}
	}
	return out
}

// Known reports whether name is a registered tool.
func Known(name string) bool {
	for _, t := range registry {
		if string(t.Function.Name) == name {
			return true
		}
	}
	return false
}

// Names returns the names of every registered tool.
func Names() []string {
	out := make([]string, len(registry))
	for i, t := range registry {
		out[i] = string(t.Function.Name)
	}
	return out
}
