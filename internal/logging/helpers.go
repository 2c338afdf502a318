package logging

// Per-category convenience wrappers. These keep call sites terse:
// logging.Agent("turn %d", n) instead of logging.Get(...).Info(...).

func Boot(format string, args ...interface{})    { Get(CategoryBoot).Info(format, args...) }
func Gateway(format string, args ...interface{}) { Get(CategoryGateway).Info(format, args...) }
func Agent(format string, args ...interface{})   { Get(CategoryAgent).Info(format, args...) }
func Router(format string, args ...interface{})  { Get(CategoryRouter).Info(format, args...) }
func Mission(format string, args ...interface{}) { Get(CategoryMission).Info(format, args...) }
func Signal(format string, args ...interface{})  { Get(CategorySignal).Info(format, args...) }
func Market(format string, args ...interface{})  { Get(CategoryMarket).Info(format, args...) }
func Tools(format string, args ...interface{})   { Get(CategoryTools).Info(format, args...) }
func Browser(format string, args ...interface{}) { Get(CategoryBrowser).Info(format, args...) }
func Store(format string, args ...interface{})   { Get(CategoryStore).Info(format, args...) }
func KPI(format string, args ...interface{})     { Get(CategoryKPI).Info(format, args...) }
func Oracle(format string, args ...interface{})  { Get(CategoryOracle).Info(format, args...) }

func GatewayDebug(format string, args ...interface{}) { Get(CategoryGateway).Debug(format, args...) }
func AgentDebug(format string, args ...interface{})   { Get(CategoryAgent).Debug(format, args...) }
func RouterDebug(format string, args ...interface{})  { Get(CategoryRouter).Debug(format, args...) }
func MissionDebug(format string, args ...interface{}) { Get(CategoryMission).Debug(format, args...) }
func SignalDebug(format string, args ...interface{})  { Get(CategorySignal).Debug(format, args...) }
func MarketDebug(format string, args ...interface{})  { Get(CategoryMarket).Debug(format, args...) }
func ToolsDebug(format string, args ...interface{})   { Get(CategoryTools).Debug(format, args...) }
func BrowserDebug(format string, args ...interface{}) { Get(CategoryBrowser).Debug(format, args...) }
func StoreDebug(format string, args ...interface{})   { Get(CategoryStore).Debug(format, args...) }
func OracleDebug(format string, args ...interface{})  { Get(CategoryOracle).Debug(format, args...) }

func AgentWarn(format string, args ...interface{})   { Get(CategoryAgent).Warn(format, args...) }
func GatewayWarn(format string, args ...interface{}) { Get(CategoryGateway).Warn(format, args...) }
func MarketWarn(format string, args ...interface{})  { Get(CategoryMarket).Warn(format, args...) }
func OracleWarn(format string, args ...interface{})  { Get(CategoryOracle).Warn(format, args...) }

func AgentError(format string, args ...interface{})   { Get(CategoryAgent).Error(format, args...) }
func KPIError(format string, args ...interface{})     { Get(CategoryKPI).Error(format, args...) }
func GatewayError(format string, args ...interface{}) { Get(CategoryGateway).Error(format, args...) }
func StoreError(format string, args ...interface{})   { Get(CategoryStore).Error(format, args...) }
func OracleError(format string, args ...interface{})  { Get(CategoryOracle).Error(format, args...) }
func BrowserError(format string, args ...interface{}) { Get(CategoryBrowser).Error(format, args...) }
