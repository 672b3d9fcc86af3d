package eventbridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"bfdb/domain/core/valueobjects"
	"bfdb/domain/events"
)

type mockAPI struct {
	mock.Mock
}

func (m *mockAPI) PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*eventbridge.PutEventsOutput)
	return out, args.Error(1)
}

func nodeEvents(n int) []events.DomainEvent {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	out := make([]events.DomainEvent, n)
	for i := range out {
		out[i] = events.NewNodeCreated(valueobjects.BfGid(string(rune('a'+i))), "org-1", "BfPerson", "person-1", ts)
	}
	return out
}

func TestPublishBatchChunksByTen(t *testing.T) {
	api := new(mockAPI)
	var sizes []int
	api.On("PutEvents", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			sizes = append(sizes, len(args.Get(1).(*eventbridge.PutEventsInput).Entries))
		}).
		Return(&eventbridge.PutEventsOutput{}, nil)

	p := NewPublisher(api, "bfdb-bus", "", zaptest.NewLogger(t))
	require.NoError(t, p.PublishBatch(context.Background(), nodeEvents(23)))
	assert.Equal(t, []int{10, 10, 3}, sizes)
}

func TestPublishEntryShape(t *testing.T) {
	api := new(mockAPI)
	api.On("PutEvents", mock.Anything, mock.Anything).Return(&eventbridge.PutEventsOutput{}, nil)

	p := NewPublisher(api, "bfdb-bus", "custom.source", zaptest.NewLogger(t))
	evt := nodeEvents(1)[0]
	require.NoError(t, p.Publish(context.Background(), evt))

	in := api.Calls[0].Arguments.Get(1).(*eventbridge.PutEventsInput)
	require.Len(t, in.Entries, 1)
	entry := in.Entries[0]
	assert.Equal(t, "bfdb-bus", aws.ToString(entry.EventBusName))
	assert.Equal(t, "custom.source", aws.ToString(entry.Source))
	assert.Equal(t, events.TypeNodeCreated, aws.ToString(entry.DetailType))
	assert.Equal(t, evt.GetTimestamp(), aws.ToTime(entry.Time))

	var detail map[string]any
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &detail))
	assert.Equal(t, "a", detail["aggregate_id"])
	assert.Equal(t, "BfPerson", detail["class_name"])
}

func TestPublishFailures(t *testing.T) {
	t.Run("client error", func(t *testing.T) {
		api := new(mockAPI)
		api.On("PutEvents", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))
		p := NewPublisher(api, "bus", "", zaptest.NewLogger(t))
		assert.ErrorContains(t, p.Publish(context.Background(), nodeEvents(1)[0]), "throttled")
	})

	t.Run("failed entries", func(t *testing.T) {
		api := new(mockAPI)
		api.On("PutEvents", mock.Anything, mock.Anything).Return(&eventbridge.PutEventsOutput{
			FailedEntryCount: 1,
			Entries: []types.PutEventsResultEntry{
				{EventId: aws.String("1")},
				{ErrorCode: aws.String("InternalFailure"), ErrorMessage: aws.String("retry")},
			},
		}, nil)
		p := NewPublisher(api, "bus", "", zaptest.NewLogger(t))
		assert.ErrorContains(t, p.PublishBatch(context.Background(), nodeEvents(2)), "1 events failed")
	})

	t.Run("empty batch", func(t *testing.T) {
		api := new(mockAPI)
		p := NewPublisher(api, "bus", "", zaptest.NewLogger(t))
		assert.NoError(t, p.PublishBatch(context.Background(), nil))
		api.AssertNotCalled(t, "PutEvents", mock.Anything, mock.Anything)
	})
}
