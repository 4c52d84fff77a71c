package lark

import (
	"context"
	"fmt"

	larkbitable "github.com/larksuite/oapi-sdk-go/v3/service/bitable/v1"
	"go.uber.org/zap"

	"github.com/garyjia/sheet-import/internal/cellvalue"
	"github.com/garyjia/sheet-import/pkg/paginate"
)

// Response codes worth retrying: frequency limit, bitable busy, write conflict
var transientCodes = map[int]bool{
	99991400: true,
	1254290:  true,
	1254291:  true,
	1254607:  true,
}

// apiError turns a failed response into an error, permanent unless the
// code is known to clear on retry
func apiError(code int, msg string) error {
	err := fmt.Errorf("API error: code=%d, msg=%s", code, msg)
	if transientCodes[code] {
		return err
	}
	return paginate.Permanent(err)
}

// BitableAPI reads table schemas and records
type BitableAPI struct {
	client *Client
	logger *zap.Logger
}

// NewBitableAPI creates a new bitable API handler
func NewBitableAPI(client *Client, logger *zap.Logger) *BitableAPI {
	return &BitableAPI{
		client: client,
		logger: logger,
	}
}

// ListFields returns every field of the table, primary field first
func (b *BitableAPI) ListFields(ctx context.Context, appToken, tableID string) ([]*cellvalue.Field, error) {
	query := func(ctx context.Context, pageToken string) (*paginate.Page[*cellvalue.Field], error) {
		builder := larkbitable.NewListAppTableFieldReqBuilder().
			AppToken(appToken).
			TableId(tableID).
			PageSize(b.client.pageSize)
		if pageToken != "" {
			builder = builder.PageToken(pageToken)
		}

		resp, err := b.client.client.Bitable.AppTableField.List(ctx, builder.Build())
		if err != nil {
			return nil, fmt.Errorf("failed to list fields: %w", err)
		}
		if !resp.Success() {
			b.logger.Error("API returned failure",
				zap.String("table_id", tableID),
				zap.Int("code", resp.Code),
				zap.String("msg", resp.Msg))
			return nil, apiError(resp.Code, resp.Msg)
		}

		page := &paginate.Page[*cellvalue.Field]{}
		if resp.Data == nil {
			return page, nil
		}
		for _, item := range resp.Data.Items {
			if f := toField(item); f != nil {
				page.Items = append(page.Items, f)
			}
		}
		page.HasMore = deref(resp.Data.HasMore)
		page.PageToken = deref(resp.Data.PageToken)
		page.Total = deref(resp.Data.Total)
		return page, nil
	}

	fields, err := paginate.Paginate(ctx, query, b.client.listOptions("fields"))
	if err != nil {
		b.logger.Error("Failed to list fields",
			zap.String("app_token", appToken),
			zap.String("table_id", tableID),
			zap.Error(err))
		return nil, err
	}

	b.logger.Info("Fields listed",
		zap.String("table_id", tableID),
		zap.Int("fields", len(fields)))
	return fields, nil
}

// ListRecords returns every record of the table with values keyed by field id
func (b *BitableAPI) ListRecords(ctx context.Context, appToken, tableID string, fields []*cellvalue.Field) ([]cellvalue.Record, error) {
	byName := make(map[string]string, len(fields))
	for _, f := range fields {
		byName[f.Name] = f.ID
	}

	query := func(ctx context.Context, pageToken string) (*paginate.Page[cellvalue.Record], error) {
		builder := larkbitable.NewListAppTableRecordReqBuilder().
			AppToken(appToken).
			TableId(tableID).
			PageSize(b.client.pageSize)
		if pageToken != "" {
			builder = builder.PageToken(pageToken)
		}

		resp, err := b.client.client.Bitable.AppTableRecord.List(ctx, builder.Build())
		if err != nil {
			return nil, fmt.Errorf("failed to list records: %w", err)
		}
		if !resp.Success() {
			b.logger.Error("API returned failure",
				zap.String("table_id", tableID),
				zap.Int("code", resp.Code),
				zap.String("msg", resp.Msg))
			return nil, apiError(resp.Code, resp.Msg)
		}

		page := &paginate.Page[cellvalue.Record]{}
		if resp.Data == nil {
			return page, nil
		}
		for _, item := range resp.Data.Items {
			if rec, ok := toRecord(item, byName); ok {
				page.Items = append(page.Items, rec)
			}
		}
		page.HasMore = deref(resp.Data.HasMore)
		page.PageToken = deref(resp.Data.PageToken)
		page.Total = deref(resp.Data.Total)
		return page, nil
	}

	records, err := paginate.Paginate(ctx, query, b.client.listOptions("records"))
	if err != nil {
		b.logger.Error("Failed to list records",
			zap.String("app_token", appToken),
			zap.String("table_id", tableID),
			zap.Error(err))
		return nil, err
	}

	b.logger.Info("Records listed",
		zap.String("table_id", tableID),
		zap.Int("records", len(records)))
	return records, nil
}

// LoadLinkTable fetches a peer table and indexes it on primaryField so link
// columns can resolve against it. An empty primaryField picks the table's
// primary field. The table is registered with the session.
func (b *BitableAPI) LoadLinkTable(ctx context.Context, r *cellvalue.Registry, s *cellvalue.Session, appToken, tableID, primaryField string) (*cellvalue.IndexedTable, error) {
	fields, err := b.ListFields(ctx, appToken, tableID)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("table %s has no fields", tableID)
	}
	if primaryField == "" {
		primaryField = fields[0].ID
	}

	records, err := b.ListRecords(ctx, appToken, tableID, fields)
	if err != nil {
		return nil, err
	}

	table := cellvalue.NewIndexedTable(r, s, tableID, fields, records, primaryField)
	s.AddTable(table)
	return table, nil
}

func toField(item *larkbitable.AppTableFieldForList) *cellvalue.Field {
	if item == nil || item.FieldId == nil {
		return nil
	}
	f := &cellvalue.Field{
		ID:     *item.FieldId,
		Name:   deref(item.FieldName),
		Type:   cellvalue.FieldType(deref(item.Type)),
		UIType: deref(item.UiType),
	}
	if f.Type == cellvalue.FieldTypeSingleLink || f.Type == cellvalue.FieldTypeDuplexLink {
		if item.Property != nil && item.Property.TableId != nil {
			f.Property.Link = &cellvalue.LinkConfig{TableID: *item.Property.TableId}
		}
	}
	return f
}

// toRecord rekeys a record's fields from names to ids. Unknown names are
// kept as they are.
func toRecord(item *larkbitable.AppTableRecord, byName map[string]string) (cellvalue.Record, bool) {
	if item == nil || item.RecordId == nil {
		return cellvalue.Record{}, false
	}
	rec := cellvalue.Record{
		ID:     *item.RecordId,
		Fields: make(map[string]any, len(item.Fields)),
	}
	for name, v := range item.Fields {
		if id, ok := byName[name]; ok {
			rec.Fields[id] = v
			continue
		}
		rec.Fields[name] = v
	}
	return rec, true
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
