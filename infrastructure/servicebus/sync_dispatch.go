package servicebus

import (
	"context"
	"encoding/json"

	"event-sync/domain/model"
	"event-sync/infrastructure/logger"
	"event-sync/usecase"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
)

// NewServiceBus connects to the Azure Service Bus namespace with the ambient
// Azure credential.
func NewServiceBus(_ context.Context, namespace string) (*azservicebus.Client, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, err
	}
	return azservicebus.NewClient(namespace, cred, nil)
}

// SyncDispatchReceiver is an optional dispatch source: other services drop
// {event_id, action, platforms} messages on a queue and this loop turns them
// into sync jobs.
type SyncDispatchReceiver struct {
	client *azservicebus.Client
	queue  string
	syncUC usecase.ISyncUsecase
}

func NewSyncDispatchReceiver(client *azservicebus.Client, queue string, syncUC usecase.ISyncUsecase) *SyncDispatchReceiver {
	if queue == "" {
		queue = "event-sync-dispatch"
	}
	return &SyncDispatchReceiver{client: client, queue: queue, syncUC: syncUC}
}

// Run receives dispatch messages until the context is cancelled. Malformed
// messages are dead-lettered rather than retried forever.
func (r *SyncDispatchReceiver) Run(ctx context.Context) error {
	receiver, err := r.client.NewReceiverForQueue(r.queue, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := receiver.Close(context.Background()); err != nil {
			logger.GetLogger().WithField("error", err).Error("servicebus: close receiver")
		}
	}()

	for {
		messages, err := receiver.ReceiveMessages(ctx, 10, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.GetLogger().WithField("error", err).Warn("servicebus: receive failed")
			continue
		}
		for _, message := range messages {
			var req model.SyncRequest
			if err := json.Unmarshal(message.Body, &req); err != nil || !model.ValidSyncAction(req.Action) {
				logger.GetLogger().WithField("error", err).Warn("servicebus: dead-lettering malformed dispatch message")
				_ = receiver.DeadLetterMessage(ctx, message, nil)
				continue
			}
			if err := r.syncUC.Enqueue(ctx, req.EventID, req.Action, req.Platforms); err != nil {
				logger.GetLogger().WithField("error", err).Error("servicebus: enqueue sync job failed")
				_ = receiver.AbandonMessage(ctx, message, nil)
				continue
			}
			if err := receiver.CompleteMessage(ctx, message, nil); err != nil {
				logger.GetLogger().WithField("error", err).Warn("servicebus: complete message failed")
			}
		}
	}
}
