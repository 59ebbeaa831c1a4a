package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"form-analytics-server/models"
)

const (
	formsCollection     = "forms"
	responsesCollection = "form_responses"

	// Returned by standalone servers for session transactions.
	codeIllegalOperation = 20
)

type formDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	Fields      []models.Field     `bson:"fields"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}

func (d *formDocument) toModel() models.Form {
	fields := d.Fields
	if fields == nil {
		fields = []models.Field{}
	}
	for i := range fields {
		if fields[i].Validation != nil {
			fields[i].Validation = fromBSONMap(fields[i].Validation)
		}
	}
	return models.Form{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		Fields:      fields,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
}

type responseDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	FormID      primitive.ObjectID `bson:"form_id"`
	Values      bson.M             `bson:"responses"`
	SubmittedAt time.Time          `bson:"submitted_at"`
	IPAddress   string             `bson:"ip_address,omitempty"`
}

func (d *responseDocument) toModel() models.Response {
	return models.Response{
		ID:          d.ID.Hex(),
		FormID:      d.FormID.Hex(),
		Values:      fromBSONMap(d.Values),
		SubmittedAt: d.SubmittedAt.UTC(),
		IPAddress:   d.IPAddress,
	}
}

// MongoStore is the document backend.
type MongoStore struct {
	client    *mongo.Client
	forms     *mongo.Collection
	responses *mongo.Collection
	log       *logrus.Entry
}

// OpenMongo connects, pings and ensures the response index exists.
func OpenMongo(ctx context.Context, uri, database string, log *logrus.Entry) (*MongoStore, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	store := NewMongoStore(client, database, log)
	if err := store.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	log.Infof("✅ Connected to MongoDB database %s", database)
	return store, nil
}

func NewMongoStore(client *mongo.Client, database string, log *logrus.Entry) *MongoStore {
	db := client.Database(database)
	return &MongoStore{
		client:    client,
		forms:     db.Collection(formsCollection),
		responses: db.Collection(responsesCollection),
		log:       log,
	}
}

func (s *MongoStore) Backend() string { return "mongodb" }

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.responses.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "form_id", Value: 1}, {Key: "submitted_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create response index: %w", err)
	}
	return nil
}

func (s *MongoStore) CreateForm(ctx context.Context, input models.FormInput) (*models.Form, error) {
	now := mongoNow()
	doc := formDocument{
		ID:          primitive.NewObjectID(),
		Title:       input.Title,
		Description: input.Description,
		Fields:      input.Fields,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if doc.Fields == nil {
		doc.Fields = []models.Field{}
	}
	if _, err := s.forms.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create form: %w", err)
	}
	form := doc.toModel()
	return &form, nil
}

func (s *MongoStore) GetForm(ctx context.Context, id string) (*models.Form, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrFormNotFound
	}
	var doc formDocument
	if err := s.forms.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrFormNotFound
		}
		return nil, fmt.Errorf("failed to fetch form: %w", err)
	}
	form := doc.toModel()
	return &form, nil
}

func (s *MongoStore) ListForms(ctx context.Context) ([]models.Form, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.forms.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list forms: %w", err)
	}
	var docs []formDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode forms: %w", err)
	}
	forms := make([]models.Form, len(docs))
	for i := range docs {
		forms[i] = docs[i].toModel()
	}
	return forms, nil
}

func (s *MongoStore) UpdateForm(ctx context.Context, id string, patch models.FormPatch) (*models.Form, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrFormNotFound
	}

	set := bson.M{"updated_at": mongoNow()}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Fields != nil {
		set["fields"] = *patch.Fields
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc formDocument
	err = s.forms.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrFormNotFound
		}
		return nil, fmt.Errorf("failed to update form: %w", err)
	}
	form := doc.toModel()
	return &form, nil
}

// DeleteForm removes the form and its responses inside a transaction. A
// standalone server has no transactions; there the form goes first so the
// leftover responses are never counted, and the orphan sweeper collects them.
func (s *MongoStore) DeleteForm(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrFormNotFound
	}

	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := s.responses.DeleteMany(sc, bson.M{"form_id": oid}); err != nil {
			return nil, err
		}
		result, err := s.forms.DeleteOne(sc, bson.M{"_id": oid})
		if err != nil {
			return nil, err
		}
		if result.DeletedCount == 0 {
			return nil, ErrFormNotFound
		}
		return nil, nil
	})
	if err == nil || errors.Is(err, ErrFormNotFound) {
		return err
	}
	if !transactionsUnsupported(err) {
		return fmt.Errorf("failed to delete form: %w", err)
	}

	s.log.Warn("⚠️ MongoDB transactions unavailable, deleting form before its responses")
	result, err := s.forms.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("failed to delete form: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrFormNotFound
	}
	if _, err := s.responses.DeleteMany(ctx, bson.M{"form_id": oid}); err != nil {
		s.log.WithError(err).WithField("form_id", id).Warn("⚠️ Responses left for the orphan sweeper")
	}
	return nil
}

func (s *MongoStore) CreateResponse(ctx context.Context, formID string, values map[string]any, ipAddress string) (*models.Response, error) {
	oid, err := primitive.ObjectIDFromHex(formID)
	if err != nil {
		return nil, ErrFormNotFound
	}
	n, err := s.forms.CountDocuments(ctx, bson.M{"_id": oid}, options.Count().SetLimit(1))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch form: %w", err)
	}
	if n == 0 {
		return nil, ErrFormNotFound
	}

	doc := responseDocument{
		ID:          primitive.NewObjectID(),
		FormID:      oid,
		Values:      bson.M(values),
		SubmittedAt: mongoNow(),
		IPAddress:   ipAddress,
	}
	if doc.Values == nil {
		doc.Values = bson.M{}
	}
	if _, err := s.responses.InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create response: %w", err)
	}
	response := doc.toModel()
	return &response, nil
}

func (s *MongoStore) ListResponses(ctx context.Context, formID string, query models.ResponseQuery) ([]models.Response, error) {
	oid, err := primitive.ObjectIDFromHex(formID)
	if err != nil {
		return []models.Response{}, nil
	}
	return s.findResponses(ctx, bson.M{"form_id": oid}, query.Order, query.Limit)
}

func (s *MongoStore) ListRecentResponses(ctx context.Context, formIDs []string, limit int) ([]models.Response, error) {
	oids := make([]primitive.ObjectID, 0, len(formIDs))
	for _, id := range formIDs {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	if len(oids) == 0 {
		return []models.Response{}, nil
	}
	return s.findResponses(ctx, bson.M{"form_id": bson.M{"$in": oids}}, models.NewestFirst, limit)
}

func (s *MongoStore) CountResponses(ctx context.Context, formID string) (int64, error) {
	filter := bson.M{}
	if formID != "" {
		oid, err := primitive.ObjectIDFromHex(formID)
		if err != nil {
			return 0, nil
		}
		filter["form_id"] = oid
	}
	n, err := s.responses.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count responses: %w", err)
	}
	return n, nil
}

func (s *MongoStore) DeleteOrphanResponses(ctx context.Context) (int64, error) {
	ids, err := s.forms.Distinct(ctx, "_id", bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to list form ids: %w", err)
	}
	result, err := s.responses.DeleteMany(ctx, bson.M{"form_id": bson.M{"$nin": ids}})
	if err != nil {
		return 0, fmt.Errorf("failed to delete orphan responses: %w", err)
	}
	return result.DeletedCount, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) findResponses(ctx context.Context, filter bson.M, order models.ResponseOrder, limit int) ([]models.Response, error) {
	direction := -1
	if order == models.OldestFirst {
		direction = 1
	}
	opts := options.Find().SetSort(bson.D{{Key: "submitted_at", Value: direction}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := s.responses.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	var docs []responseDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode responses: %w", err)
	}
	responses := make([]models.Response, len(docs))
	for i := range docs {
		responses[i] = docs[i].toModel()
	}
	return responses, nil
}

func transactionsUnsupported(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr.Code == codeIllegalOperation
	}
	return false
}

// MongoDB stores milliseconds; truncating keeps returned values equal to stored ones.
func mongoNow() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func fromBSONMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = fromBSON(v)
	}
	return out
}

func fromBSON(v any) any {
	switch x := v.(type) {
	case primitive.A:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = fromBSON(item)
		}
		return out
	case bson.M:
		return fromBSONMap(x)
	case primitive.D:
		return fromBSONMap(x.Map())
	}
	return models.NormalizeValue(v)
}
