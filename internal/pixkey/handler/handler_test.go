package handler_test

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"pixkey/internal/pixkey/handler"
	"pixkey/internal/pixkey/handler/mocks"
	"pixkey/internal/pixkey/models"
	"pixkey/internal/platform/logger"
	"pixkey/internal/platform/metrics"
	"pixkey/internal/platform/middleware"
	id "pixkey/pkg/domain"
	dErrors "pixkey/pkg/domain-errors"
	"pixkey/pkg/testutil"
)

// subjectValidator accepts any token and treats it as the user id.
type subjectValidator struct{}

func (subjectValidator) ValidateToken(token string) (*middleware.JWTClaims, error) {
	if token == "bad" {
		return nil, errors.New("invalid token")
	}
	return &middleware.JWTClaims{UserID: token}, nil
}

type HandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	router  http.Handler
	user    id.UserID
	key     *models.Key
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	h := handler.New(s.service, logger.Discard(), metrics.NewWithRegisterer(prometheus.NewRegistry()), subjectValidator{})
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	h.Register(r)
	s.router = r

	s.user = id.UserID(uuid.New())
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	key, err := models.NewKey(id.NewKeyID(), s.user, models.KeyTypeEmail, "owner@pix.com", now)
	s.Require().NoError(err)
	s.key = key
}

func (s *HandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, testutil.WithBearer(req, s.user.String()))
}

func (s *HandlerSuite) path(suffix string) string {
	return "/v1/pix/keys/" + s.key.ID.String() + suffix
}

func (s *HandlerSuite) TestAuthRequired() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/v1/pix/keys"))
	testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)

	rr = testutil.DoRequest(s.router, testutil.WithBearer(testutil.NewRequest(s.T(), http.MethodGet, "/v1/pix/keys"), "bad"))
	testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
}

func (s *HandlerSuite) TestCreateKey() {
	s.Run("created", func() {
		s.service.EXPECT().
			CreateKey(gomock.Any(), s.user, models.KeyTypeEmail, "owner@pix.com").
			Return(s.key, nil)

		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/pix/keys",
			handler.CreateKeyRequest{KeyType: "email", KeyValue: "owner@pix.com"}))

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		resp := testutil.UnmarshalResponse[handler.KeyResponse](s.T(), rr)
		s.Equal(s.key.ID.String(), resp.ID)
		s.Equal("PENDING", resp.State)
	})

	s.Run("missing type", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/pix/keys",
			handler.CreateKeyRequest{KeyValue: "owner@pix.com"}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("duplicate", func() {
		s.service.EXPECT().CreateKey(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeConflict, "pix key already registered"))
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/pix/keys",
			handler.CreateKeyRequest{KeyType: "EMAIL", KeyValue: "owner@pix.com"}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "conflict")
	})
}

func (s *HandlerSuite) TestQueries() {
	s.Run("list", func() {
		s.service.EXPECT().ListKeys(gomock.Any(), s.user).Return([]*models.Key{s.key}, nil)
		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/v1/pix/keys"))
		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[handler.ListKeysResponse](s.T(), rr)
		s.Len(resp.Keys, 1)
	})

	s.Run("get", func() {
		s.service.EXPECT().GetKey(gomock.Any(), s.key.ID, s.user).Return(s.key, nil)
		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, s.path("")))
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("bad id", func() {
		rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/v1/pix/keys/not-a-uuid"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})
}

func (s *HandlerSuite) TestCommandsRouteToService() {
	claimed := s.key.Clone()
	claimed.State = models.StateOwnershipOpened
	claimed.Claim = models.NewClaim(id.NewClaimID(), claimed.ID, models.ClaimTypeOwnership, models.ReasonDefaultOperation, claimed.CreatedAt)

	s.Run("ownership start", func() {
		s.service.EXPECT().StartOwnershipClaim(gomock.Any(), s.key.ID, s.user).Return(claimed, nil)
		rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, s.path("/ownership/start")))
		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[handler.KeyResponse](s.T(), rr)
		s.Equal("OWNERSHIP_OPENED", resp.State)
		s.Require().NotNil(resp.Claim)
		s.Equal("OWNERSHIP", resp.Claim.Type)
	})

	s.Run("portability approve", func() {
		s.service.EXPECT().ApprovePortabilityClaim(gomock.Any(), s.key.ID, s.user).Return(s.key, nil)
		rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, s.path("/portability/approve")))
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("cancel code with reason", func() {
		s.service.EXPECT().CancelCode(gomock.Any(), s.key.ID, s.user, models.ReasonFraud).Return(s.key, nil)
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, s.path("/cancel-code"), handler.ReasonRequest{Reason: "fraud"}))
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("ownership cancel defaults the reason", func() {
		s.service.EXPECT().CancelOwnershipClaim(gomock.Any(), s.key.ID, s.user, models.ReasonUserRequested).Return(s.key, nil)
		rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, s.path("/ownership/cancel")))
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("bad reason", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, s.path("/cancel-code"), handler.ReasonRequest{Reason: "BORED"}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})

	s.Run("dismiss", func() {
		s.service.EXPECT().Dismiss(gomock.Any(), s.key.ID, s.user).Return(s.key, nil)
		rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, s.path("/dismiss")))
		testutil.AssertStatusOK(s.T(), rr)
	})
}

func (s *HandlerSuite) TestCommandErrors() {
	s.Run("rejection is not found", func() {
		s.service.EXPECT().Dismiss(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "pix key not found for this operation"))
		rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, s.path("/dismiss")))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})

	s.Run("owner mismatch is forbidden", func() {
		s.service.EXPECT().Dismiss(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeForbidden, "not the key owner"))
		rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, s.path("/dismiss")))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
	})

	s.Run("committed with pending side effects is accepted", func() {
		s.service.EXPECT().StartOwnershipClaim(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(s.key, dErrors.New(dErrors.CodeUnavailable, "delivery will be retried"))
		rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, s.path("/ownership/start")))
		testutil.AssertStatus(s.T(), rr, http.StatusAccepted)
		testutil.AssertJSONContains(s.T(), rr, "id", s.key.ID.String())
	})

	s.Run("infrastructure failure hides details", func() {
		s.service.EXPECT().Dismiss(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.Wrap(errors.New("pq: broken pipe"), dErrors.CodeInternal, "pix key transition failed"))
		rr := s.do(testutil.NewRequest(s.T(), http.MethodPost, s.path("/dismiss")))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusInternalServerError, "internal_error")
	})
}
