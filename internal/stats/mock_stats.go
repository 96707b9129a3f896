package stats

// MockProvider is a no-op Provider for tests.
type MockProvider struct{}

func (m *MockProvider) ConnectionOpened()            {}
func (m *MockProvider) ConnectionClosed()            {}
func (m *MockProvider) SetOnlineUsers(n int)         {}
func (m *MockProvider) EventReceived(event string)   {}
func (m *MockProvider) MessageProcessed(kind string) {}
func (m *MockProvider) ErrorOccurred(kind string)    {}
