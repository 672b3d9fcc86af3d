package dynamodb

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"bfdb/domain/core/entities"
	"bfdb/domain/core/valueobjects"
)

// Key attribute names of the single table
const (
	attrPK        = "PK"
	attrSK        = "SK"
	attrGSI1PK    = "GSI1PK"
	attrGSI2PK    = "GSI2PK"
	attrGSI3PK    = "GSI3PK"
	attrSortValue = "SortValue"
)

// record is the DynamoDB item structure for a node or edge.
//
//	PK     ORG#<oid>            SK ITEM#<gid>
//	GSI1PK GID#<gid>            lookups by id alone
//	GSI2PK ORG#<oid>#SID#<sid>  edges by source, sorted by SortValue
//	GSI3PK ORG#<oid>#TID#<tid>  edges by target, sorted by SortValue
type record struct {
	PK        string             `dynamodbav:"PK"`
	SK        string             `dynamodbav:"SK"`
	GSI1PK    string             `dynamodbav:"GSI1PK"`
	GSI2PK    string             `dynamodbav:"GSI2PK,omitempty"`
	GSI3PK    string             `dynamodbav:"GSI3PK,omitempty"`
	SortValue int64              `dynamodbav:"SortValue"`
	Metadata  entities.Metadata  `dynamodbav:"metadata"`
	Props     valueobjects.Props `dynamodbav:"props"`
}

func orgPK(oid valueobjects.BfGid) string {
	return fmt.Sprintf("ORG#%s", oid)
}

func itemSK(gid valueobjects.BfGid) string {
	return fmt.Sprintf("ITEM#%s", gid)
}

func gidPK(gid valueobjects.BfGid) string {
	return fmt.Sprintf("GID#%s", gid)
}

func sourcePK(oid, sid valueobjects.BfGid) string {
	return fmt.Sprintf("ORG#%s#SID#%s", oid, sid)
}

func targetPK(oid, tid valueobjects.BfGid) string {
	return fmt.Sprintf("ORG#%s#TID#%s", oid, tid)
}

func primaryKey(oid, gid valueobjects.BfGid) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: orgPK(oid)},
		attrSK: &types.AttributeValueMemberS{Value: itemSK(gid)},
	}
}

func toRecord(item entities.Item) record {
	md := item.Metadata
	r := record{
		PK:        orgPK(md.BfOid),
		SK:        itemSK(md.BfGid),
		GSI1PK:    gidPK(md.BfGid),
		SortValue: md.SortValue,
		Metadata:  md,
		Props:     item.Props,
	}
	if !md.BfSid.IsZero() {
		r.GSI2PK = sourcePK(md.BfOid, md.BfSid)
	}
	if !md.BfTid.IsZero() {
		r.GSI3PK = targetPK(md.BfOid, md.BfTid)
	}
	if r.Props == nil {
		r.Props = valueobjects.Props{}
	}
	return r
}

func marshalItem(item entities.Item) (map[string]types.AttributeValue, error) {
	av, err := attributevalue.MarshalMap(toRecord(item))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal item %s: %w", item.Metadata.BfGid, err)
	}
	return av, nil
}

func unmarshalItem(av map[string]types.AttributeValue) (entities.Item, error) {
	var r record
	if err := attributevalue.UnmarshalMap(av, &r); err != nil {
		return entities.Item{}, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return entities.Item{Props: r.Props.Clone(), Metadata: r.Metadata}, nil
}
