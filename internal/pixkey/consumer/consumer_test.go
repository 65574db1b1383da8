package consumer_test

//go:generate mockgen -source=claim_ready.go -destination=mocks/mocks.go -package=mocks ClaimNotifier

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	pixconsumer "pixkey/internal/pixkey/consumer"
	"pixkey/internal/pixkey/consumer/mocks"
	"pixkey/internal/pixkey/metrics"
	"pixkey/internal/pixkey/models"
	"pixkey/internal/platform/kafka/consumer"
	"pixkey/internal/platform/logger"
	id "pixkey/pkg/domain"
	dErrors "pixkey/pkg/domain-errors"
	"pixkey/pkg/requestcontext"
)

type ConsumerSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	notifier *mocks.MockClaimNotifier
	metrics  *metrics.Metrics
	router   *pixconsumer.Router
}

func TestConsumerSuite(t *testing.T) {
	suite.Run(t, new(ConsumerSuite))
}

func (s *ConsumerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.notifier = mocks.NewMockClaimNotifier(s.ctrl)
	s.metrics = metrics.NewWithRegisterer(prometheus.NewRegistry())
	s.router = pixconsumer.NewRouter(logger.Discard(), pixconsumer.WithMetrics(s.metrics))
	s.router.Register(pixconsumer.NotificationOwnershipClaimReady,
		pixconsumer.NewClaimReadyHandler(s.notifier, logger.Discard()))
}

func (s *ConsumerSuite) message(n pixconsumer.Notification) *consumer.Message {
	raw, err := json.Marshal(n)
	s.Require().NoError(err)
	return &consumer.Message{Topic: "pix.directory.notifications", Value: raw}
}

func (s *ConsumerSuite) seen(kind, outcome string) float64 {
	return testutil.ToFloat64(s.metrics.NotificationsSeen.WithLabelValues(kind, outcome))
}

func (s *ConsumerSuite) TestClaimReadyDrivesService() {
	key := &models.Key{ID: id.NewKeyID(), State: models.StateClaimPending}
	s.notifier.EXPECT().
		ReadyOwnershipClaim(gomock.Any(), models.KeyType(""), "owner@pix.com").
		DoAndReturn(func(ctx context.Context, _ models.KeyType, _ string) (*models.Key, error) {
			s.Equal("notice-1", requestcontext.RequestID(ctx))
			return key, nil
		})

	err := s.router.Handle(context.Background(), s.message(pixconsumer.Notification{
		ID: "notice-1", Type: pixconsumer.NotificationOwnershipClaimReady, KeyValue: "owner@pix.com",
	}))
	s.NoError(err)
	s.Equal(1.0, s.seen("OWNERSHIP_CLAIM_READY", "handled"))
}

func (s *ConsumerSuite) TestClaimReadyPassesKeyType() {
	cases := []struct {
		name     string
		keyType  string
		keyValue string
		want     models.KeyType
	}{
		{"mixed-case email", "email", "Ana@Example.com", models.KeyTypeEmail},
		{"punctuated CPF", "DOCUMENT", "123.456.789-09", models.KeyTypeDocument},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.notifier.EXPECT().
				ReadyOwnershipClaim(gomock.Any(), tc.want, tc.keyValue).
				Return(&models.Key{ID: id.NewKeyID(), State: models.StateClaimPending}, nil)

			err := s.router.Handle(context.Background(), s.message(pixconsumer.Notification{
				Type: pixconsumer.NotificationOwnershipClaimReady, KeyType: tc.keyType, KeyValue: tc.keyValue,
			}))
			s.NoError(err)
		})
	}
}

func (s *ConsumerSuite) TestUnknownKeyTypeIsCommittedWithoutCommand() {
	err := s.router.Handle(context.Background(), s.message(pixconsumer.Notification{
		Type: pixconsumer.NotificationOwnershipClaimReady, KeyType: "IBAN", KeyValue: "x",
	}))
	s.NoError(err)
}

func (s *ConsumerSuite) TestFinalOutcomesAreCommitted() {
	for _, code := range []dErrors.Code{dErrors.CodeNotFound, dErrors.CodeInvalidInput, dErrors.CodeUnavailable} {
		s.Run(string(code), func() {
			s.notifier.EXPECT().ReadyOwnershipClaim(gomock.Any(), gomock.Any(), gomock.Any()).
				Return(nil, dErrors.New(code, "nope"))
			err := s.router.Handle(context.Background(), s.message(pixconsumer.Notification{
				Type: pixconsumer.NotificationOwnershipClaimReady, KeyValue: "gone@pix.com",
			}))
			s.NoError(err)
		})
	}
}

func (s *ConsumerSuite) TestTransientErrorIsRedelivered() {
	boom := errors.New("database unavailable")
	s.notifier.EXPECT().ReadyOwnershipClaim(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, boom)

	err := s.router.Handle(context.Background(), s.message(pixconsumer.Notification{
		Type: pixconsumer.NotificationOwnershipClaimReady, KeyValue: "busy@pix.com",
	}))
	s.ErrorIs(err, boom)
	s.Equal(1.0, s.seen("OWNERSHIP_CLAIM_READY", "retry"))
}

func (s *ConsumerSuite) TestMalformedAndUnknownAreSkipped() {
	s.Run("malformed payload", func() {
		err := s.router.Handle(context.Background(), &consumer.Message{Value: []byte("{not json")})
		s.NoError(err)
		s.Equal(1.0, s.seen("unknown", "malformed"))
	})

	s.Run("unknown type", func() {
		err := s.router.Handle(context.Background(), s.message(pixconsumer.Notification{
			Type: "PORTABILITY_CLAIM_OPENED", KeyValue: "x@pix.com",
		}))
		s.NoError(err)
		s.Equal(1.0, s.seen("PORTABILITY_CLAIM_OPENED", "skipped"))
	})
}
