// Package bdd runs the engine's behavior suite against the in-memory
// executor, so the features document engine semantics without needing
// a database.
package bdd

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/cucumber/godog"

	"github.com/cadogan/recmap/pkg/crypt"
	"github.com/cadogan/recmap/pkg/entity"
	"github.com/cadogan/recmap/pkg/executor"
	"github.com/cadogan/recmap/pkg/executor/memory"
	"github.com/cadogan/recmap/pkg/registry"
	"github.com/cadogan/recmap/pkg/search"
)

// The schema the features speak about. Users and posts reference each
// other, so relations are wired before Define seals the types.
var (
	bddUser   *entity.Type
	bddPost   *entity.Type
	bddTag    *entity.Type
	bddGadget *entity.Type
)

type gadgetHooks struct{ entity.NopHooks }

func (gadgetHooks) BeforeCreate(e *entity.Entity) bool {
	label, _ := e.Get("label")
	s, _ := label.(string)
	return strings.TrimSpace(s) != ""
}

func (gadgetHooks) BeforeDelete(e *entity.Entity) bool {
	locked, _ := e.Get("locked")
	return locked != "yes"
}

func init() {
	bddUser = &entity.Type{
		Name:      "User",
		Table:     "users",
		Defaults:  []string{"login"},
		Encrypted: []string{"api_key"},
		Encoded:   []string{"scopes"},
		Order:     "id",
	}
	bddPost = &entity.Type{
		Name:         "Post",
		Table:        "posts",
		SearchFields: []string{"title", "body"},
		Order:        "id",
	}
	bddTag = &entity.Type{
		Name:  "Tag",
		Table: "tags",
	}
	bddGadget = &entity.Type{
		Name:     "Gadget",
		Table:    "gadgets",
		Defaults: []string{"label"},
		Hooks:    gadgetHooks{},
	}

	bddUser.Relations = map[string]entity.Relation{
		"posts": entity.OwnedMany(bddPost, "author_id"),
	}
	bddPost.Relations = map[string]entity.Relation{
		"author": entity.Direct(bddUser, "author_id"),
		"tags":   entity.Through(bddTag, "post_tags", "post_id", "tag_id"),
	}

	entity.Define(bddUser)
	entity.Define(bddPost)
	entity.Define(bddTag)
	entity.Define(bddGadget)
}

// StepsContext holds state shared between step definitions.
type StepsContext struct {
	reg      *registry.Registry
	exec     *memory.Executor
	entities map[string]*entity.Entity
	outcome  bool
	lastErr  error
}

// NewStepsContext creates a new steps context.
func NewStepsContext() *StepsContext {
	return &StepsContext{}
}

// RegisterSteps registers all step definitions.
func (s *StepsContext) RegisterSteps(sc *godog.ScenarioContext) {
	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		return ctx, s.reset()
	})

	sc.Step(`^an empty store$`, s.anEmptyStore)
	sc.Step(`^the store enforces unique "([^"]*)" on "([^"]*)"$`, s.theStoreEnforcesUnique)

	sc.Step(`^I create a "([^"]*)" with:$`, s.iCreateWith)
	sc.Step(`^I create a conflict-tolerant "([^"]*)" with:$`, s.iCreateTolerantWith)
	sc.Step(`^I create a "([^"]*)" from an empty mapping$`, s.iCreateFromEmptyMapping)
	sc.Step(`^I save the "([^"]*)"$`, s.iSave)
	sc.Step(`^I delete the "([^"]*)"$`, s.iDelete)
	sc.Step(`^I reload the "([^"]*)" by its identifier$`, s.iReload)
	sc.Step(`^I change the "([^"]*)" field "([^"]*)" to "([^"]*)"$`, s.iChangeField)
	sc.Step(`^I set the "([^"]*)" field "([^"]*)" to the list "([^"]*)"$`, s.iSetFieldList)
	sc.Step(`^I relate the "([^"]*)" to the "([^"]*)" under "([^"]*)"$`, s.iRelate)

	sc.Step(`^the (?:save|delete) is reported (accepted|rejected)$`, s.theOutcomeIs)
	sc.Step(`^the create fails with the empty payload error$`, s.theCreateFailsEmptyPayload)
	sc.Step(`^the create fails with a conflict error$`, s.theCreateFailsConflict)
	sc.Step(`^the "([^"]*)" has an identifier$`, s.hasIdentifier)
	sc.Step(`^the "([^"]*)" has no identifier$`, s.hasNoIdentifier)
	sc.Step(`^the "([^"]*)" field "([^"]*)" is "([^"]*)"$`, s.fieldIs)
	sc.Step(`^the "([^"]*)" field "([^"]*)" is the "([^"]*)" identifier$`, s.fieldIsIdentifierOf)
	sc.Step(`^the "([^"]*)" field "([^"]*)" is a list of (\d+) items$`, s.fieldIsListOf)
	sc.Step(`^the "([^"]*)" relation "([^"]*)" resolves to the "([^"]*)"$`, s.relationResolvesTo)
	sc.Step(`^the stored "([^"]*)" column "([^"]*)" is not "([^"]*)"$`, s.storedColumnIsNot)
	sc.Step(`^the store holds (\d+) "([^"]*)" rows?$`, s.storeHoldsRows)
	sc.Step(`^searching "([^"]*)" for "([^"]*)" finds the "([^"]*)"$`, s.searchFinds)
	sc.Step(`^searching "([^"]*)" for "([^"]*)" finds nothing$`, s.searchFindsNothing)
}

func (s *StepsContext) reset() error {
	key, err := crypt.GenerateKey()
	if err != nil {
		return err
	}
	cipher, err := crypt.New(key)
	if err != nil {
		return err
	}

	s.exec = memory.New(cipher)
	s.exec.DeclareUnique("post_tags", "post_id", "tag_id")
	s.reg = registry.New()
	s.reg.Register(registry.DefaultName, s.exec)
	s.entities = map[string]*entity.Entity{}
	s.outcome = false
	s.lastErr = nil
	return nil
}

func typeFor(keyword string) (*entity.Type, error) {
	switch keyword {
	case "user":
		return bddUser, nil
	case "post":
		return bddPost, nil
	case "tag":
		return bddTag, nil
	case "gadget":
		return bddGadget, nil
	}
	return nil, fmt.Errorf("unknown record keyword %q", keyword)
}

func payloadFrom(table *godog.Table) map[string]any {
	payload := map[string]any{}
	for _, row := range table.Rows {
		if len(row.Cells) != 2 {
			continue
		}
		payload[strings.TrimSpace(row.Cells[0].Value)] = strings.TrimSpace(row.Cells[1].Value)
	}
	return payload
}

func (s *StepsContext) entityNamed(keyword string) (*entity.Entity, error) {
	e, ok := s.entities[keyword]
	if !ok || e == nil {
		return nil, fmt.Errorf("no %q in play", keyword)
	}
	return e, nil
}

// Given steps

func (s *StepsContext) anEmptyStore() error {
	return s.reset()
}

func (s *StepsContext) theStoreEnforcesUnique(field, tableName string) error {
	s.exec.DeclareUnique(tableName, field)
	return nil
}

// When steps. Create and mutate steps stash failures instead of
// failing the scenario, so Then steps can assert on them.

func (s *StepsContext) create(keyword string, payload map[string]any, tolerant bool) error {
	typ, err := typeFor(keyword)
	if err != nil {
		return err
	}

	e, err := typ.FromMap(s.reg, payload)
	if err != nil {
		s.lastErr = err
		s.outcome = false
		return nil
	}
	if tolerant {
		e.OnConflictIgnore()
	}

	s.entities[keyword] = e
	s.outcome, s.lastErr = e.Save()
	return nil
}

func (s *StepsContext) iCreateWith(keyword string, table *godog.Table) error {
	return s.create(keyword, payloadFrom(table), false)
}

func (s *StepsContext) iCreateTolerantWith(keyword string, table *godog.Table) error {
	return s.create(keyword, payloadFrom(table), true)
}

func (s *StepsContext) iCreateFromEmptyMapping(keyword string) error {
	return s.create(keyword, map[string]any{}, false)
}

func (s *StepsContext) iSave(keyword string) error {
	e, err := s.entityNamed(keyword)
	if err != nil {
		return err
	}
	s.outcome, s.lastErr = e.Save()
	return nil
}

func (s *StepsContext) iDelete(keyword string) error {
	e, err := s.entityNamed(keyword)
	if err != nil {
		return err
	}
	s.outcome, s.lastErr = e.Delete()
	return nil
}

func (s *StepsContext) iReload(keyword string) error {
	e, err := s.entityNamed(keyword)
	if err != nil {
		return err
	}
	typ, err := typeFor(keyword)
	if err != nil {
		return err
	}

	fresh, err := typ.Load(s.reg, e.ID())
	if err != nil {
		return err
	}
	if fresh == nil {
		return fmt.Errorf("%s %v is gone", keyword, e.ID())
	}
	s.entities[keyword] = fresh
	return nil
}

func (s *StepsContext) iChangeField(keyword, field, value string) error {
	e, err := s.entityNamed(keyword)
	if err != nil {
		return err
	}
	return e.Set(field, value)
}

func (s *StepsContext) iSetFieldList(keyword, field, list string) error {
	e, err := s.entityNamed(keyword)
	if err != nil {
		return err
	}

	var items []string
	for _, item := range strings.Split(list, ",") {
		items = append(items, strings.TrimSpace(item))
	}
	return e.Set(field, items)
}

func (s *StepsContext) iRelate(keyword, target, relation string) error {
	e, err := s.entityNamed(keyword)
	if err != nil {
		return err
	}
	related, err := s.entityNamed(target)
	if err != nil {
		return err
	}
	s.lastErr = e.Set(relation, related)
	return nil
}

// Then steps

func (s *StepsContext) theOutcomeIs(expected string) error {
	if s.lastErr != nil {
		return fmt.Errorf("operation errored: %v", s.lastErr)
	}
	if expected == "accepted" && !s.outcome {
		return fmt.Errorf("operation was rejected")
	}
	if expected == "rejected" && s.outcome {
		return fmt.Errorf("operation was accepted")
	}
	return nil
}

func (s *StepsContext) theCreateFailsEmptyPayload() error {
	if !errors.Is(s.lastErr, entity.ErrEmptyPayload) {
		return fmt.Errorf("expected the empty payload error, got %v", s.lastErr)
	}
	return nil
}

func (s *StepsContext) theCreateFailsConflict() error {
	if !errors.Is(s.lastErr, executor.ErrConflict) {
		return fmt.Errorf("expected a conflict error, got %v", s.lastErr)
	}
	return nil
}

func (s *StepsContext) hasIdentifier(keyword string) error {
	e, err := s.entityNamed(keyword)
	if err != nil {
		return err
	}
	if e.ID() == nil {
		return fmt.Errorf("%s has no identifier", keyword)
	}
	return nil
}

func (s *StepsContext) hasNoIdentifier(keyword string) error {
	e, err := s.entityNamed(keyword)
	if err != nil {
		return err
	}
	if id := e.ID(); id != nil {
		return fmt.Errorf("%s unexpectedly has identifier %v", keyword, id)
	}
	return nil
}

func (s *StepsContext) fieldIs(keyword, field, expected string) error {
	e, err := s.entityNamed(keyword)
	if err != nil {
		return err
	}
	value, err := e.Get(field)
	if err != nil {
		return err
	}
	if fmt.Sprint(value) != expected {
		return fmt.Errorf("%s.%s is %v, expected %s", keyword, field, value, expected)
	}
	return nil
}

func (s *StepsContext) fieldIsIdentifierOf(keyword, field, target string) error {
	related, err := s.entityNamed(target)
	if err != nil {
		return err
	}
	return s.fieldIs(keyword, field, fmt.Sprint(related.ID()))
}

func (s *StepsContext) fieldIsListOf(keyword, field string, count int) error {
	e, err := s.entityNamed(keyword)
	if err != nil {
		return err
	}
	value, err := e.Get(field)
	if err != nil {
		return err
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice {
		return fmt.Errorf("%s.%s is %T, not a list", keyword, field, value)
	}
	if rv.Len() != count {
		return fmt.Errorf("%s.%s holds %d items, expected %d", keyword, field, rv.Len(), count)
	}
	return nil
}

func (s *StepsContext) relationResolvesTo(keyword, relation, target string) error {
	e, err := s.entityNamed(keyword)
	if err != nil {
		return err
	}
	related, err := s.entityNamed(target)
	if err != nil {
		return err
	}

	resolved, err := e.Get(relation)
	if err != nil {
		return err
	}
	found, ok := resolved.(*entity.Entity)
	if !ok || found == nil {
		return fmt.Errorf("%s.%s resolved to %T, expected an entity", keyword, relation, resolved)
	}
	if !executor.LooseEqual(found.ID(), related.ID()) {
		return fmt.Errorf("%s.%s resolved to %v, expected %v", keyword, relation, found.ID(), related.ID())
	}
	return nil
}

func (s *StepsContext) storedColumnIsNot(tableName, column, value string) error {
	rows := s.exec.Rows(tableName)
	if len(rows) == 0 {
		return fmt.Errorf("no %s rows stored", tableName)
	}
	for _, row := range rows {
		if fmt.Sprint(row[column]) == value {
			return fmt.Errorf("%s.%s holds %q in the clear", tableName, column, value)
		}
	}
	return nil
}

func (s *StepsContext) storeHoldsRows(count int, tableName string) error {
	rows := s.exec.Rows(tableName)
	if len(rows) != count {
		return fmt.Errorf("store holds %d %s rows, expected %d", len(rows), tableName, count)
	}
	return nil
}

func (s *StepsContext) searchFinds(tableName, term, keyword string) error {
	e, err := s.entityNamed(keyword)
	if err != nil {
		return err
	}

	hits, err := search.New(s.exec, nil).Lookup(tableName, term)
	if err != nil {
		return err
	}
	want := fmt.Sprint(e.ID())
	for _, hit := range hits {
		if hit == want {
			return nil
		}
	}
	return fmt.Errorf("searching %s for %q found %v, expected %s", tableName, term, hits, want)
}

func (s *StepsContext) searchFindsNothing(tableName, term string) error {
	hits, err := search.New(s.exec, nil).Lookup(tableName, term)
	if err != nil {
		return err
	}
	if len(hits) != 0 {
		return fmt.Errorf("searching %s for %q found %v, expected nothing", tableName, term, hits)
	}
	return nil
}
