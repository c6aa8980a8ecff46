package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bhavik262/pizza-delivery/internal/admin"
	"github.com/bhavik262/pizza-delivery/internal/auth"
	"github.com/bhavik262/pizza-delivery/internal/catalog"
	handler "github.com/bhavik262/pizza-delivery/internal/handler/http"
	"github.com/bhavik262/pizza-delivery/internal/inventory"
	"github.com/bhavik262/pizza-delivery/internal/order"
	"github.com/bhavik262/pizza-delivery/internal/pricing"
	"github.com/bhavik262/pizza-delivery/internal/user"
)

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, in user.RegisterInput) (*user.User, string, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*user.User), args.String(1), args.Error(2)
}

func (m *MockUserService) Login(ctx context.Context, email, password string) (*user.User, string, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*user.User), args.String(1), args.Error(2)
}

func (m *MockUserService) Authenticate(ctx context.Context, rawToken string) (auth.Identity, error) {
	args := m.Called(ctx, rawToken)
	return args.Get(0).(auth.Identity), args.Error(1)
}

func (m *MockUserService) VerifyEmail(ctx context.Context, token string) (*user.User, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserService) ForgotPassword(ctx context.Context, email, clientIP string) error {
	args := m.Called(ctx, email, clientIP)
	return args.Error(0)
}

func (m *MockUserService) ResetPassword(ctx context.Context, token, password string) error {
	args := m.Called(ctx, token, password)
	return args.Error(0)
}

func (m *MockUserService) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserService) UpdateProfile(ctx context.Context, id uuid.UUID, in user.ProfileInput) (*user.User, error) {
	args := m.Called(ctx, id, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserService) EnsureAdmin(ctx context.Context, name, email, password string) error {
	args := m.Called(ctx, name, email, password)
	return args.Error(0)
}

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) CreateOrder(ctx context.Context, in order.CreateInput) (*order.Checkout, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Checkout), args.Error(1)
}

func (m *MockOrderService) VerifyPayment(ctx context.Context, userID, orderID uuid.UUID, pc order.PaymentConfirmation) (*order.Order, error) {
	args := m.Called(ctx, userID, orderID, pc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) ConfirmCashOnDelivery(ctx context.Context, userID, orderID uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, userID, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) UpdateStatus(ctx context.Context, actor auth.Identity, orderID uuid.UUID, to order.Status, notes string) (*order.Order, error) {
	args := m.Called(ctx, actor, orderID, to, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) CancelByUser(ctx context.Context, actor auth.Identity, orderID uuid.UUID, reason string) (*order.Order, error) {
	args := m.Called(ctx, actor, orderID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) GetOrder(ctx context.Context, actor auth.Identity, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, actor, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) ListUserOrders(ctx context.Context, userID uuid.UUID, f order.ListFilter) ([]order.Order, int, error) {
	args := m.Called(ctx, userID, f)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]order.Order), args.Int(1), args.Error(2)
}

func (m *MockOrderService) ListOrders(ctx context.Context, f order.ListFilter) ([]order.Order, int, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]order.Order), args.Int(1), args.Error(2)
}

func (m *MockOrderService) Stats(ctx context.Context) (*order.Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Stats), args.Error(1)
}

type MockCatalogService struct {
	mock.Mock
}

func (m *MockCatalogService) ListPizzas(ctx context.Context, f catalog.ListFilter) ([]catalog.Pizza, int, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]catalog.Pizza), args.Int(1), args.Error(2)
}

func (m *MockCatalogService) GetPizza(ctx context.Context, id uuid.UUID) (*catalog.Pizza, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Pizza), args.Error(1)
}

func (m *MockCatalogService) CreatePizza(ctx context.Context, p *catalog.Pizza) (*catalog.Pizza, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Pizza), args.Error(1)
}

func (m *MockCatalogService) UpdatePizza(ctx context.Context, p *catalog.Pizza) (*catalog.Pizza, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Pizza), args.Error(1)
}

func (m *MockCatalogService) DeletePizza(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockCatalogService) CountPizzas(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockCatalogService) GetCustomizations(ctx context.Context) (*catalog.Customizations, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Customizations), args.Error(1)
}

func (m *MockCatalogService) UpdateCustomizations(ctx context.Context, c *catalog.Customizations) (*catalog.Customizations, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Customizations), args.Error(1)
}

type MockInventoryService struct {
	mock.Mock
}

func (m *MockInventoryService) CreateItem(ctx context.Context, item *inventory.Item) (*inventory.Item, error) {
	args := m.Called(ctx, item)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.Item), args.Error(1)
}

func (m *MockInventoryService) GetItem(ctx context.Context, id uuid.UUID) (*inventory.Details, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.Details), args.Error(1)
}

func (m *MockInventoryService) ListItems(ctx context.Context, f inventory.ListFilter) ([]inventory.Details, int, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]inventory.Details), args.Int(1), args.Error(2)
}

func (m *MockInventoryService) UpdateItem(ctx context.Context, item *inventory.Item) (*inventory.Item, error) {
	args := m.Called(ctx, item)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.Item), args.Error(1)
}

func (m *MockInventoryService) DeleteItem(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockInventoryService) AdjustStock(ctx context.Context, id uuid.UUID, adj inventory.Adjustment) (*inventory.Details, error) {
	args := m.Called(ctx, id, adj)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.Details), args.Error(1)
}

func (m *MockInventoryService) ConsumeForOrder(ctx context.Context, orderID uuid.UUID, reason string, usages []inventory.Usage) error {
	return m.Called(ctx, orderID, reason, usages).Error(0)
}

func (m *MockInventoryService) ScanLowStock(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockInventoryService) LowStockReport(ctx context.Context) ([]inventory.Details, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]inventory.Details), args.Error(1)
}

func (m *MockInventoryService) CountLowStock(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockInventoryService) CountItems(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockDashboard struct {
	mock.Mock
}

func (m *MockDashboard) Dashboard(ctx context.Context) (*admin.Dashboard, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*admin.Dashboard), args.Error(1)
}

const (
	userToken  = "user-token"
	adminToken = "admin-token"
)

var (
	customer      = auth.Identity{UserID: uuid.Must(uuid.NewV4()), Role: auth.RoleUser}
	administrator = auth.Identity{UserID: uuid.Must(uuid.NewV4()), Role: auth.RoleAdmin}
)

type testAPI struct {
	users     *MockUserService
	orders    *MockOrderService
	catalog   *MockCatalogService
	inventory *MockInventoryService
	dashboard *MockDashboard
	router    http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	return newTestAPIWith(t, func(*handler.RouterDeps) {})
}

func newTestAPIWith(t *testing.T, configure func(*handler.RouterDeps)) *testAPI {
	t.Helper()
	api := &testAPI{
		users:     new(MockUserService),
		orders:    new(MockOrderService),
		catalog:   new(MockCatalogService),
		inventory: new(MockInventoryService),
		dashboard: new(MockDashboard),
	}
	api.users.On("Authenticate", mock.Anything, userToken).Return(customer, nil).Maybe()
	api.users.On("Authenticate", mock.Anything, adminToken).Return(administrator, nil).Maybe()
	api.users.On("Authenticate", mock.Anything, "").Return(auth.Identity{}, auth.ErrTokenMissing).Maybe()
	api.users.On("Authenticate", mock.Anything, "expired").Return(auth.Identity{}, auth.ErrTokenExpired).Maybe()

	deps := handler.RouterDeps{
		Users:       api.users,
		Catalog:     api.catalog,
		Pricing:     pricing.NewEngine(0.05, 50),
		Orders:      api.orders,
		Inventory:   api.inventory,
		Dashboard:   api.dashboard,
		FrontendURL: "http://localhost:3000",
	}
	configure(&deps)
	api.router = handler.NewRouter(deps)
	return api
}

func (api *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	api.router.ServeHTTP(rr, req)
	return rr
}

type envelope struct {
	Success    bool                `json:"success"`
	Message    string              `json:"message"`
	Data       json.RawMessage     `json:"data"`
	Errors     []map[string]string `json:"errors"`
	Pagination *handler.Pagination `json:"pagination"`
	Error      string              `json:"error"`
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env), "body: %s", rr.Body.String())
	return env
}
