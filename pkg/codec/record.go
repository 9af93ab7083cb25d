package codec

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/Sternrassler/dynamodb-parallel-scan/pkg/scan"
)

// ItemRecord encodes an item in the given mode.
func ItemRecord(item map[string]types.AttributeValue, mode Mode) (map[string]any, error) {
	switch mode {
	case ModeDocument:
		return DocumentItem(item)
	case ModeRaw, "":
		return EncodeItem(item)
	default:
		return nil, fmt.Errorf("unknown encoding mode %q", mode)
	}
}

// PageRecord encodes a whole Scan response: Items, Count, ScannedCount and,
// when present, LastEvaluatedKey and ConsumedCapacity.
func PageRecord(page *scan.Page, mode Mode) (map[string]any, error) {
	items := make([]map[string]any, 0, len(page.Items))
	for i, item := range page.Items {
		rec, err := ItemRecord(item, mode)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, rec)
	}

	record := map[string]any{
		"Items":        items,
		"Count":        page.Count,
		"ScannedCount": page.ScannedCount,
	}

	if len(page.LastEvaluatedKey) > 0 {
		key, err := ItemRecord(page.LastEvaluatedKey, mode)
		if err != nil {
			return nil, fmt.Errorf("last evaluated key: %w", err)
		}
		record["LastEvaluatedKey"] = key
	}

	if page.ConsumedCapacity != nil {
		record["ConsumedCapacity"] = consumedCapacityRecord(page.ConsumedCapacity)
	}

	return record, nil
}

// consumedCapacityRecord encodes every set field of cc, including the per
// table and per index breakdown returned for ReturnConsumedCapacity INDEXES.
func consumedCapacityRecord(cc *types.ConsumedCapacity) map[string]any {
	record := map[string]any{}
	if cc.TableName != nil {
		record["TableName"] = *cc.TableName
	}
	putUnits(record, cc.CapacityUnits, cc.ReadCapacityUnits, cc.WriteCapacityUnits)
	if cc.Table != nil {
		record["Table"] = capacityRecord(*cc.Table)
	}
	if len(cc.GlobalSecondaryIndexes) > 0 {
		record["GlobalSecondaryIndexes"] = indexCapacityRecord(cc.GlobalSecondaryIndexes)
	}
	if len(cc.LocalSecondaryIndexes) > 0 {
		record["LocalSecondaryIndexes"] = indexCapacityRecord(cc.LocalSecondaryIndexes)
	}
	return record
}

func indexCapacityRecord(indexes map[string]types.Capacity) map[string]any {
	record := make(map[string]any, len(indexes))
	for name, capacity := range indexes {
		record[name] = capacityRecord(capacity)
	}
	return record
}

func capacityRecord(c types.Capacity) map[string]any {
	record := map[string]any{}
	putUnits(record, c.CapacityUnits, c.ReadCapacityUnits, c.WriteCapacityUnits)
	return record
}

func putUnits(record map[string]any, total, read, write *float64) {
	if total != nil {
		record["CapacityUnits"] = *total
	}
	if read != nil {
		record["ReadCapacityUnits"] = *read
	}
	if write != nil {
		record["WriteCapacityUnits"] = *write
	}
}
