package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/stazy/chargeshare/internal/core/domain"
	"github.com/stazy/chargeshare/internal/core/usecases"
)

// buildSchema creates the read-only GraphQL schema over the station catalog.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	stationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Station",
		Fields: graphql.Fields{
			"id":             &graphql.Field{Type: graphql.String},
			"name":           &graphql.Field{Type: graphql.String},
			"address":        &graphql.Field{Type: graphql.String},
			"city":           &graphql.Field{Type: graphql.String},
			"region":         &graphql.Field{Type: graphql.String},
			"latitude":       &graphql.Field{Type: graphql.Float},
			"longitude":      &graphql.Field{Type: graphql.Float},
			"powerKw":        &graphql.Field{Type: graphql.Float},
			"pricePerHour":   &graphql.Field{Type: graphql.Float},
			"available":      &graphql.Field{Type: graphql.Boolean},
			"connectorTypes": &graphql.Field{Type: graphql.NewList(graphql.String)},
			"operator":       &graphql.Field{Type: graphql.String},
			"accessType":     &graphql.Field{Type: graphql.String},
		},
	})

	stationPageType := graphql.NewObject(graphql.ObjectConfig{
		Name: "StationPage",
		Fields: graphql.Fields{
			"stations": &graphql.Field{Type: graphql.NewList(stationType)},
			"total":    &graphql.Field{Type: graphql.Int},
			"hasMore":  &graphql.Field{Type: graphql.Boolean},
			"fallback": &graphql.Field{Type: graphql.Boolean},
		},
	})

	corridorType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Corridor",
		Fields: graphql.Fields{
			"stations":  &graphql.Field{Type: graphql.NewList(stationType)},
			"total":     &graphql.Field{Type: graphql.Int},
			"truncated": &graphql.Field{Type: graphql.Boolean},
			"radiusKm":  &graphql.Field{Type: graphql.Float},
			"fallback":  &graphql.Field{Type: graphql.Boolean},
		},
	})

	catalogStatusType := graphql.NewObject(graphql.ObjectConfig{
		Name: "CatalogStatus",
		Fields: graphql.Fields{
			"loaded":    &graphql.Field{Type: graphql.Int},
			"total":     &graphql.Field{Type: graphql.Int},
			"progress":  &graphql.Field{Type: graphql.Int},
			"loading":   &graphql.Field{Type: graphql.Boolean},
			"lastError": &graphql.Field{Type: graphql.String},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"stations": &graphql.Field{
				Type:        stationPageType,
				Description: "One page of the station catalog",
				Args: graphql.FieldConfigArgument{
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 100},
					"offset": &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 0},
					"region": &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
					"city":   &graphql.ArgumentConfig{Type: graphql.String, DefaultValue: ""},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Stations.List(p.Context, domain.StationQuery{
						Limit:  p.Args["limit"].(int),
						Offset: p.Args["offset"].(int),
						Region: p.Args["region"].(string),
						City:   p.Args["city"].(string),
					})
				},
			},
			"stationsNearRoute": &graphql.Field{
				Type:        corridorType,
				Description: "Stations within radiusKm of a polyline given as [lat, lon] pairs",
				Args: graphql.FieldConfigArgument{
					"coordinates": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.NewList(graphql.Float)))},
					"radiusKm":    &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 0.0},
					"limit":       &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: usecases.DefaultCorridorLimit},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					polyline, err := polylineArg(p.Args["coordinates"])
					if err != nil {
						return nil, err
					}
					return deps.Planner.StationsNearRoute(p.Context, polyline, p.Args["radiusKm"].(float64), p.Args["limit"].(int))
				},
			},
			"catalogStatus": &graphql.Field{
				Type:        catalogStatusType,
				Description: "Load state of the in-memory catalog",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return currentCatalogStatus(deps), nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// polylineArg converts a [[lat, lon], ...] argument.
func polylineArg(v interface{}) ([]domain.GeoPoint, error) {
	rows, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: coordinates must be a list", domain.ErrInvalidInput)
	}
	out := make([]domain.GeoPoint, 0, len(rows))
	for i, row := range rows {
		pair, ok := row.([]interface{})
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("%w: coordinate %d is not a [lat, lon] pair", domain.ErrInvalidInput, i)
		}
		lat, ok1 := pair[0].(float64)
		lon, ok2 := pair[1].(float64)
		if !ok1 || !ok2 {
			return nil, fmt.Errorf("%w: coordinate %d is not numeric", domain.ErrInvalidInput, i)
		}
		out = append(out, domain.GeoPoint{Lat: lat, Lon: lon})
	}
	return out, nil
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil || req.Query == "" {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})
		return c.JSON(result)
	}
}
