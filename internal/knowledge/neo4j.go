package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

// Neo4jConfig holds connection settings for a Neo4j instance.
type Neo4jConfig struct {
	URI      string `json:"uri"`
	User     string `json:"user"`
	Password string `json:"password"`
}

// Neo4jGraph is a Graph backed by a Neo4j server. Deduplication is handled
// by MERGE on the (subject, predicate, object) identity.
type Neo4jGraph struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// NewNeo4jGraph creates a graph backed by the given Neo4j endpoint.
func NewNeo4jGraph(cfg Neo4jConfig, logger *zap.Logger) (*Neo4jGraph, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	return &Neo4jGraph{driver: driver, logger: logger}, nil
}

// Close shuts down the Neo4j driver.
func (g *Neo4jGraph) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}

// Ping verifies the Neo4j connection.
func (g *Neo4jGraph) Ping(ctx context.Context) error {
	return g.driver.VerifyConnectivity(ctx)
}

// Upsert MERGEs the fact so repeat sightings strengthen the existing
// relationship instead of creating a second one.
func (g *Neo4jGraph) Upsert(ctx context.Context, subject, predicate, object string, confidence float64, source string) error {
	subject = normalizeTerm(subject)
	predicate = normalizeTerm(predicate)
	object = normalizeTerm(object)
	if subject == "" || predicate == "" || object == "" {
		return nil
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	_, err := session.Run(ctx,
		`MERGE (s:Entity {name: $subject})
		 MERGE (o:Entity {name: $object})
		 MERGE (s)-[r:FACT {predicate: $predicate}]->(o)
		 ON CREATE SET r.confidence = $confidence,
		               r.source = $source,
		               r.first_seen = datetime(),
		               r.last_seen = datetime()
		 ON MATCH SET r.confidence = CASE
		       WHEN (CASE WHEN r.confidence > $confidence THEN r.confidence ELSE $confidence END) + $bump > 1.0 THEN 1.0
		       ELSE (CASE WHEN r.confidence > $confidence THEN r.confidence ELSE $confidence END) + $bump
		     END,
		     r.last_seen = datetime()`,
		map[string]interface{}{
			"subject":    subject,
			"predicate":  predicate,
			"object":     object,
			"confidence": confidence,
			"source":     source,
			"bump":       confidenceBump,
		})
	if err != nil {
		return fmt.Errorf("upsert fact: %w", err)
	}

	g.logger.Debug("fact stored",
		zap.String("subject", subject),
		zap.String("predicate", predicate),
		zap.String("object", object))
	return nil
}

// Query returns every stored fact matching the pattern.
func (g *Neo4jGraph) Query(ctx context.Context, p Pattern) ([]Triple, error) {
	subject := normalizeTerm(p.Subject)
	predicate := normalizeTerm(p.Predicate)
	object := normalizeTerm(p.Object)

	var clauses []string
	params := map[string]interface{}{}
	if subject != "" {
		clauses = append(clauses, "s.name = $subject")
		params["subject"] = subject
	}
	if predicate != "" {
		clauses = append(clauses, "r.predicate = $predicate")
		params["predicate"] = predicate
	}
	if object != "" {
		clauses = append(clauses, "o.name = $object")
		params["object"] = object
	}
	query := `MATCH (s:Entity)-[r:FACT]->(o:Entity)`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += ` RETURN s.name, r.predicate, o.name, r.confidence, r.source, r.first_seen, r.last_seen`

	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}

	var triples []Triple
	for result.Next(ctx) {
		rec := result.Record()
		s, _ := rec.Get("s.name")
		pr, _ := rec.Get("r.predicate")
		o, _ := rec.Get("o.name")
		conf, _ := rec.Get("r.confidence")
		src, _ := rec.Get("r.source")
		first, _ := rec.Get("r.first_seen")
		last, _ := rec.Get("r.last_seen")

		t, ok := tripleFromRecord(s, pr, o, conf, src, first, last)
		if !ok {
			g.logger.Warn("skipping fact record with unexpected value types",
				zap.Any("subject", s),
				zap.Any("predicate", pr))
			continue
		}
		triples = append(triples, t)
	}
	return triples, result.Err()
}

// tripleFromRecord converts raw record values into a Triple. The identity
// fields and confidence are mandatory; a record with the wrong types for any
// of them is rejected rather than trusted.
func tripleFromRecord(s, pr, o, conf, src, first, last interface{}) (Triple, bool) {
	subj, okS := s.(string)
	pred, okP := pr.(string)
	obj, okO := o.(string)
	c, okC := conf.(float64)
	if !okS || !okP || !okO || !okC {
		return Triple{}, false
	}
	t := Triple{
		Subject:    subj,
		Predicate:  pred,
		Object:     obj,
		Confidence: c,
	}
	if v, ok := src.(string); ok {
		t.Source = v
	}
	if v, ok := first.(time.Time); ok {
		t.FirstSeen = v
	}
	if v, ok := last.(time.Time); ok {
		t.LastSeen = v
	}
	return t, true
}
