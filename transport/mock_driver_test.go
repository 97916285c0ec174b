package transport_test

import (
	"context"
	"reflect"

	"github.com/golang/mock/gomock"

	"github.com/nullchannel/relaynet/transport"
)

// MockDriver is a hand-written stand-in for what `mockgen` would generate
// for transport.Driver; kept in the same package-under-test style as the
// rest of this pack's gomock-based tests.
type MockDriver struct {
	ctrl     *gomock.Controller
	recorder *MockDriverRecorder
}

type MockDriverRecorder struct {
	mock *MockDriver
}

func NewMockDriver(ctrl *gomock.Controller) *MockDriver {
	m := &MockDriver{ctrl: ctrl}
	m.recorder = &MockDriverRecorder{m}
	return m
}

func (m *MockDriver) EXPECT() *MockDriverRecorder { return m.recorder }

func (m *MockDriver) Connect(ctx context.Context, endpoint string) (transport.Conn, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Connect", ctx, endpoint)
	conn, _ := ret[0].(transport.Conn)
	err, _ := ret[1].(error)
	return conn, err
}

func (mr *MockDriverRecorder) Connect(ctx, endpoint interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Connect", reflect.TypeOf((*MockDriver)(nil).Connect), ctx, endpoint)
}

func (m *MockDriver) Accept() (transport.Conn, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Accept")
	conn, _ := ret[0].(transport.Conn)
	err, _ := ret[1].(error)
	return conn, err
}

func (mr *MockDriverRecorder) Accept() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Accept", reflect.TypeOf((*MockDriver)(nil).Accept))
}

func (m *MockDriver) BeginSend(kind transport.PipelineKind, c transport.Conn) (transport.Writer, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "BeginSend", kind, c)
	w, _ := ret[0].(transport.Writer)
	err, _ := ret[1].(error)
	return w, err
}

func (mr *MockDriverRecorder) BeginSend(kind, c interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "BeginSend", reflect.TypeOf((*MockDriver)(nil).BeginSend), kind, c)
}

func (m *MockDriver) AbortSend(w transport.Writer) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "AbortSend", w)
}

func (mr *MockDriverRecorder) AbortSend(w interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "AbortSend", reflect.TypeOf((*MockDriver)(nil).AbortSend), w)
}

func (m *MockDriver) EndSend(w transport.Writer) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "EndSend", w)
	err, _ := ret[0].(error)
	return err
}

func (mr *MockDriverRecorder) EndSend(w interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "EndSend", reflect.TypeOf((*MockDriver)(nil).EndSend), w)
}

func (m *MockDriver) PopEvent(c transport.Conn) (transport.Event, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "PopEvent", c)
	ev, _ := ret[0].(transport.Event)
	err, _ := ret[1].(error)
	return ev, err
}

func (mr *MockDriverRecorder) PopEvent(c interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "PopEvent", reflect.TypeOf((*MockDriver)(nil).PopEvent), c)
}

func (m *MockDriver) Disconnect(c transport.Conn) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "Disconnect", c)
}

func (mr *MockDriverRecorder) Disconnect(c interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Disconnect", reflect.TypeOf((*MockDriver)(nil).Disconnect), c)
}

func (m *MockDriver) ScheduleUpdate() error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "ScheduleUpdate")
	err, _ := ret[0].(error)
	return err
}

func (mr *MockDriverRecorder) ScheduleUpdate() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "ScheduleUpdate", reflect.TypeOf((*MockDriver)(nil).ScheduleUpdate))
}

func (m *MockDriver) Close() error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Close")
	err, _ := ret[0].(error)
	return err
}

func (mr *MockDriverRecorder) Close() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Close", reflect.TypeOf((*MockDriver)(nil).Close))
}

var _ transport.Driver = (*MockDriver)(nil)
