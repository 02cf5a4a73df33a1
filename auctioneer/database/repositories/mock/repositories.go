package mock

import (
	context "context"
	reflect "reflect"

	models "github.com/crickora/auction-engine/auctioneer/database/models"
	bun "github.com/uptrace/bun"
	gomock "go.uber.org/mock/gomock"
)

// MockAuctionRepository is a mock of AuctionRepository interface.
type MockAuctionRepository struct {
	ctrl     *gomock.Controller
	recorder *MockAuctionRepositoryMockRecorder
	isgomock struct{}
}

// MockAuctionRepositoryMockRecorder is the mock recorder for MockAuctionRepository.
type MockAuctionRepositoryMockRecorder struct {
	mock *MockAuctionRepository
}

// NewMockAuctionRepository creates a new mock instance.
func NewMockAuctionRepository(ctrl *gomock.Controller) *MockAuctionRepository {
	mock := &MockAuctionRepository{ctrl: ctrl}
	mock.recorder = &MockAuctionRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockAuctionRepository) EXPECT() *MockAuctionRepositoryMockRecorder {
	return m.recorder
}

// AppendBid mocks base method.
func (m *MockAuctionRepository) AppendBid(ctx context.Context, bid *models.AuctionBid) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "AppendBid", ctx, bid)
	ret0, _ := ret[0].(error)
	return ret0
}

// AppendBid indicates an expected call of AppendBid.
func (mr *MockAuctionRepositoryMockRecorder) AppendBid(ctx, bid any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "AppendBid", reflect.TypeOf((*MockAuctionRepository)(nil).AppendBid), ctx, bid)
}

// Create mocks base method.
func (m *MockAuctionRepository) Create(ctx context.Context, auction *models.Auction) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Create", ctx, auction)
	ret0, _ := ret[0].(error)
	return ret0
}

// Create indicates an expected call of Create.
func (mr *MockAuctionRepositoryMockRecorder) Create(ctx, auction any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Create", reflect.TypeOf((*MockAuctionRepository)(nil).Create), ctx, auction)
}

// DB mocks base method.
func (m *MockAuctionRepository) DB() *bun.DB {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "DB")
	ret0, _ := ret[0].(*bun.DB)
	return ret0
}

// DB indicates an expected call of DB.
func (mr *MockAuctionRepositoryMockRecorder) DB() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "DB", reflect.TypeOf((*MockAuctionRepository)(nil).DB))
}

// GetBids mocks base method.
func (m *MockAuctionRepository) GetBids(ctx context.Context, auctionID, playerID int64) ([]*models.AuctionBid, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetBids", ctx, auctionID, playerID)
	ret0, _ := ret[0].([]*models.AuctionBid)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetBids indicates an expected call of GetBids.
func (mr *MockAuctionRepositoryMockRecorder) GetBids(ctx, auctionID, playerID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetBids", reflect.TypeOf((*MockAuctionRepository)(nil).GetBids), ctx, auctionID, playerID)
}

// GetByCode mocks base method.
func (m *MockAuctionRepository) GetByCode(ctx context.Context, code string) (*models.Auction, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetByCode", ctx, code)
	ret0, _ := ret[0].(*models.Auction)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetByCode indicates an expected call of GetByCode.
func (mr *MockAuctionRepositoryMockRecorder) GetByCode(ctx, code any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetByCode", reflect.TypeOf((*MockAuctionRepository)(nil).GetByCode), ctx, code)
}

// GetByID mocks base method.
func (m *MockAuctionRepository) GetByID(ctx context.Context, id int64) (*models.Auction, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetByID", ctx, id)
	ret0, _ := ret[0].(*models.Auction)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetByID indicates an expected call of GetByID.
func (mr *MockAuctionRepositoryMockRecorder) GetByID(ctx, id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetByID", reflect.TypeOf((*MockAuctionRepository)(nil).GetByID), ctx, id)
}

// GetOpen mocks base method.
func (m *MockAuctionRepository) GetOpen(ctx context.Context) ([]*models.Auction, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetOpen", ctx)
	ret0, _ := ret[0].([]*models.Auction)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetOpen indicates an expected call of GetOpen.
func (mr *MockAuctionRepositoryMockRecorder) GetOpen(ctx any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetOpen", reflect.TypeOf((*MockAuctionRepository)(nil).GetOpen), ctx)
}

// Update mocks base method.
func (m *MockAuctionRepository) Update(ctx context.Context, auction *models.Auction) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Update", ctx, auction)
	ret0, _ := ret[0].(error)
	return ret0
}

// Update indicates an expected call of Update.
func (mr *MockAuctionRepositoryMockRecorder) Update(ctx, auction any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Update", reflect.TypeOf((*MockAuctionRepository)(nil).Update), ctx, auction)
}

// MockPlayerRepository is a mock of PlayerRepository interface.
type MockPlayerRepository struct {
	ctrl     *gomock.Controller
	recorder *MockPlayerRepositoryMockRecorder
	isgomock struct{}
}

// MockPlayerRepositoryMockRecorder is the mock recorder for MockPlayerRepository.
type MockPlayerRepositoryMockRecorder struct {
	mock *MockPlayerRepository
}

// NewMockPlayerRepository creates a new mock instance.
func NewMockPlayerRepository(ctrl *gomock.Controller) *MockPlayerRepository {
	mock := &MockPlayerRepository{ctrl: ctrl}
	mock.recorder = &MockPlayerRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockPlayerRepository) EXPECT() *MockPlayerRepositoryMockRecorder {
	return m.recorder
}

// Create mocks base method.
func (m *MockPlayerRepository) Create(ctx context.Context, player *models.Player) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Create", ctx, player)
	ret0, _ := ret[0].(error)
	return ret0
}

// Create indicates an expected call of Create.
func (mr *MockPlayerRepositoryMockRecorder) Create(ctx, player any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Create", reflect.TypeOf((*MockPlayerRepository)(nil).Create), ctx, player)
}

// CreateBatch mocks base method.
func (m *MockPlayerRepository) CreateBatch(ctx context.Context, players []*models.Player) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "CreateBatch", ctx, players)
	ret0, _ := ret[0].(error)
	return ret0
}

// CreateBatch indicates an expected call of CreateBatch.
func (mr *MockPlayerRepositoryMockRecorder) CreateBatch(ctx, players any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CreateBatch", reflect.TypeOf((*MockPlayerRepository)(nil).CreateBatch), ctx, players)
}

// GetByAuction mocks base method.
func (m *MockPlayerRepository) GetByAuction(ctx context.Context, auctionID int64) ([]*models.Player, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetByAuction", ctx, auctionID)
	ret0, _ := ret[0].([]*models.Player)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetByAuction indicates an expected call of GetByAuction.
func (mr *MockPlayerRepositoryMockRecorder) GetByAuction(ctx, auctionID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetByAuction", reflect.TypeOf((*MockPlayerRepository)(nil).GetByAuction), ctx, auctionID)
}

// GetByID mocks base method.
func (m *MockPlayerRepository) GetByID(ctx context.Context, id int64) (*models.Player, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetByID", ctx, id)
	ret0, _ := ret[0].(*models.Player)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetByID indicates an expected call of GetByID.
func (mr *MockPlayerRepositoryMockRecorder) GetByID(ctx, id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetByID", reflect.TypeOf((*MockPlayerRepository)(nil).GetByID), ctx, id)
}

// GetPending mocks base method.
func (m *MockPlayerRepository) GetPending(ctx context.Context, auctionID int64) ([]*models.Player, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetPending", ctx, auctionID)
	ret0, _ := ret[0].([]*models.Player)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetPending indicates an expected call of GetPending.
func (mr *MockPlayerRepositoryMockRecorder) GetPending(ctx, auctionID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetPending", reflect.TypeOf((*MockPlayerRepository)(nil).GetPending), ctx, auctionID)
}

// Update mocks base method.
func (m *MockPlayerRepository) Update(ctx context.Context, player *models.Player) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Update", ctx, player)
	ret0, _ := ret[0].(error)
	return ret0
}

// Update indicates an expected call of Update.
func (mr *MockPlayerRepositoryMockRecorder) Update(ctx, player any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Update", reflect.TypeOf((*MockPlayerRepository)(nil).Update), ctx, player)
}

// Upsert mocks base method.
func (m *MockPlayerRepository) Upsert(ctx context.Context, player *models.Player) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Upsert", ctx, player)
	ret0, _ := ret[0].(error)
	return ret0
}

// Upsert indicates an expected call of Upsert.
func (mr *MockPlayerRepositoryMockRecorder) Upsert(ctx, player any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Upsert", reflect.TypeOf((*MockPlayerRepository)(nil).Upsert), ctx, player)
}

// MockTeamRepository is a mock of TeamRepository interface.
type MockTeamRepository struct {
	ctrl     *gomock.Controller
	recorder *MockTeamRepositoryMockRecorder
	isgomock struct{}
}

// MockTeamRepositoryMockRecorder is the mock recorder for MockTeamRepository.
type MockTeamRepositoryMockRecorder struct {
	mock *MockTeamRepository
}

// NewMockTeamRepository creates a new mock instance.
func NewMockTeamRepository(ctrl *gomock.Controller) *MockTeamRepository {
	mock := &MockTeamRepository{ctrl: ctrl}
	mock.recorder = &MockTeamRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockTeamRepository) EXPECT() *MockTeamRepositoryMockRecorder {
	return m.recorder
}

// Create mocks base method.
func (m *MockTeamRepository) Create(ctx context.Context, team *models.Team) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Create", ctx, team)
	ret0, _ := ret[0].(error)
	return ret0
}

// Create indicates an expected call of Create.
func (mr *MockTeamRepositoryMockRecorder) Create(ctx, team any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Create", reflect.TypeOf((*MockTeamRepository)(nil).Create), ctx, team)
}

// GetByAuction mocks base method.
func (m *MockTeamRepository) GetByAuction(ctx context.Context, auctionID int64) ([]*models.Team, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetByAuction", ctx, auctionID)
	ret0, _ := ret[0].([]*models.Team)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetByAuction indicates an expected call of GetByAuction.
func (mr *MockTeamRepositoryMockRecorder) GetByAuction(ctx, auctionID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetByAuction", reflect.TypeOf((*MockTeamRepository)(nil).GetByAuction), ctx, auctionID)
}

// GetByID mocks base method.
func (m *MockTeamRepository) GetByID(ctx context.Context, id int64) (*models.Team, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetByID", ctx, id)
	ret0, _ := ret[0].(*models.Team)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetByID indicates an expected call of GetByID.
func (mr *MockTeamRepositoryMockRecorder) GetByID(ctx, id any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetByID", reflect.TypeOf((*MockTeamRepository)(nil).GetByID), ctx, id)
}

// GetSquad mocks base method.
func (m *MockTeamRepository) GetSquad(ctx context.Context, teamID int64) ([]*models.TeamPlayer, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetSquad", ctx, teamID)
	ret0, _ := ret[0].([]*models.TeamPlayer)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetSquad indicates an expected call of GetSquad.
func (mr *MockTeamRepositoryMockRecorder) GetSquad(ctx, teamID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetSquad", reflect.TypeOf((*MockTeamRepository)(nil).GetSquad), ctx, teamID)
}

// ReplaceSquad mocks base method.
func (m *MockTeamRepository) ReplaceSquad(ctx context.Context, team *models.Team, squad []*models.TeamPlayer) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ReplaceSquad", ctx, team, squad)
	ret0, _ := ret[0].(error)
	return ret0
}

// ReplaceSquad indicates an expected call of ReplaceSquad.
func (mr *MockTeamRepositoryMockRecorder) ReplaceSquad(ctx, team, squad any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ReplaceSquad", reflect.TypeOf((*MockTeamRepository)(nil).ReplaceSquad), ctx, team, squad)
}

// Update mocks base method.
func (m *MockTeamRepository) Update(ctx context.Context, team *models.Team) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Update", ctx, team)
	ret0, _ := ret[0].(error)
	return ret0
}

// Update indicates an expected call of Update.
func (mr *MockTeamRepositoryMockRecorder) Update(ctx, team any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Update", reflect.TypeOf((*MockTeamRepository)(nil).Update), ctx, team)
}

// MockTradeRepository is a mock of TradeRepository interface.
type MockTradeRepository struct {
	ctrl     *gomock.Controller
	recorder *MockTradeRepositoryMockRecorder
	isgomock struct{}
}

// MockTradeRepositoryMockRecorder is the mock recorder for MockTradeRepository.
type MockTradeRepositoryMockRecorder struct {
	mock *MockTradeRepository
}

// NewMockTradeRepository creates a new mock instance.
func NewMockTradeRepository(ctrl *gomock.Controller) *MockTradeRepository {
	mock := &MockTradeRepository{ctrl: ctrl}
	mock.recorder = &MockTradeRepositoryMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockTradeRepository) EXPECT() *MockTradeRepositoryMockRecorder {
	return m.recorder
}

// GetByAuction mocks base method.
func (m *MockTradeRepository) GetByAuction(ctx context.Context, auctionID int64) ([]*models.TradeProposal, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetByAuction", ctx, auctionID)
	ret0, _ := ret[0].([]*models.TradeProposal)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetByAuction indicates an expected call of GetByAuction.
func (mr *MockTradeRepositoryMockRecorder) GetByAuction(ctx, auctionID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetByAuction", reflect.TypeOf((*MockTradeRepository)(nil).GetByAuction), ctx, auctionID)
}

// GetByProposalID mocks base method.
func (m *MockTradeRepository) GetByProposalID(ctx context.Context, proposalID string) (*models.TradeProposal, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetByProposalID", ctx, proposalID)
	ret0, _ := ret[0].(*models.TradeProposal)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetByProposalID indicates an expected call of GetByProposalID.
func (mr *MockTradeRepositoryMockRecorder) GetByProposalID(ctx, proposalID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetByProposalID", reflect.TypeOf((*MockTradeRepository)(nil).GetByProposalID), ctx, proposalID)
}

// GetPending mocks base method.
func (m *MockTradeRepository) GetPending(ctx context.Context, auctionID int64) ([]*models.TradeProposal, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetPending", ctx, auctionID)
	ret0, _ := ret[0].([]*models.TradeProposal)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetPending indicates an expected call of GetPending.
func (mr *MockTradeRepositoryMockRecorder) GetPending(ctx, auctionID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetPending", reflect.TypeOf((*MockTradeRepository)(nil).GetPending), ctx, auctionID)
}

// Upsert mocks base method.
func (m *MockTradeRepository) Upsert(ctx context.Context, trade *models.TradeProposal) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Upsert", ctx, trade)
	ret0, _ := ret[0].(error)
	return ret0
}

// Upsert indicates an expected call of Upsert.
func (mr *MockTradeRepositoryMockRecorder) Upsert(ctx, trade any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Upsert", reflect.TypeOf((*MockTradeRepository)(nil).Upsert), ctx, trade)
}
