package api

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/annel0/mmo-npc/internal/auth"
	"github.com/annel0/mmo-npc/internal/vec"
	"github.com/gin-gonic/gin"
)

// LoginRequest представляет запрос на вход оператора
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse представляет ответ на вход
type LoginResponse struct {
	Success   bool      `json:"success"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	Message   string    `json:"message"`
}

// SpawnRequest: создание агента
type SpawnRequest struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Model string  `json:"model"`
}

// DamageRequest: нанесение урона
type DamageRequest struct {
	Amount int     `json:"amount" binding:"required"`
	DirX   float64 `json:"dir_x"`
	DirZ   float64 `json:"dir_z"`
}

// PositionRequest: телепорт агента или закрепление цели
type PositionRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// RotationRequest: поворот вокруг вертикальной оси в радианах
type RotationRequest struct {
	Angle float64 `json:"angle"`
}

// DebugRequest: переключение отладочной визуализации
type DebugRequest struct {
	Enabled bool `json:"enabled"`
}

// PathResponse: маршрут агента для отладки
type PathResponse struct {
	AgentID   uint64          `json:"agent_id"`
	Waypoints []vec.Vec2Float `json:"waypoints"`
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: msg})
}

func notFound(c *gin.Context, id uint64) {
	c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: fmt.Sprintf("Агент %d не найден", id)})
}

func ok(c *gin.Context, msg string, data interface{}) {
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: msg, Data: data})
}

// agentID разбирает :id и проверяет существование агента
func (rs *RestServer) agentID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "Неверный ID агента")
		return 0, false
	}
	if _, exists := rs.manager.Snapshot(id); !exists {
		notFound(c, id)
		return 0, false
	}
	return id, true
}

// handleLogin обрабатывает вход оператора
func (rs *RestServer) handleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, LoginResponse{Success: false, Message: "Неверный формат запроса"})
		return
	}
	if rs.operators == nil {
		c.JSON(http.StatusServiceUnavailable, LoginResponse{Success: false, Message: "Аутентификация операторов не настроена"})
		return
	}

	token, expires, err := rs.operators.Login(req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		rs.log.Warn("Неудачный вход оператора %q с %s", req.Username, c.ClientIP())
		c.JSON(http.StatusUnauthorized, LoginResponse{Success: false, Message: "Неверное имя пользователя или пароль"})
		return
	}
	if err != nil {
		rs.log.Error("Ошибка выпуска токена: %v", err)
		c.JSON(http.StatusInternalServerError, LoginResponse{Success: false, Message: "Внутренняя ошибка сервера"})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{Success: true, Token: token, ExpiresAt: expires, Message: "Вход выполнен"})
}

func (rs *RestServer) handleListAgents(c *gin.Context) {
	ok(c, "Список агентов", rs.manager.Snapshots())
}

func (rs *RestServer) handleGetAgent(c *gin.Context) {
	id, found := rs.agentID(c)
	if !found {
		return
	}
	snap, _ := rs.manager.Snapshot(id)
	remaining, _ := rs.manager.AggroRemaining(id)
	ok(c, "Агент", gin.H{
		"agent":           snap,
		"aggro_remaining": remaining,
	})
}

func (rs *RestServer) handleSpawn(c *gin.Context) {
	var req SpawnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Неверный формат запроса")
		return
	}
	pos := vec.Vec3Float{X: req.X, Y: req.Y, Z: req.Z}

	var id uint64
	if req.Model == "" {
		id = rs.manager.Spawn(pos)
	} else {
		id = rs.manager.SpawnModel(pos, req.Model)
	}
	c.JSON(http.StatusCreated, GenericResponse{Success: true, Message: "Агент создан", Data: gin.H{"id": id}})
}

func (rs *RestServer) handleDispose(c *gin.Context) {
	id, found := rs.agentID(c)
	if !found {
		return
	}
	rs.manager.Dispose(id)
	ok(c, "Агент удалён", nil)
}

func (rs *RestServer) handleDamage(c *gin.Context) {
	id, found := rs.agentID(c)
	if !found {
		return
	}
	var req DamageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Неверный формат запроса")
		return
	}

	rs.manager.ApplyDamage(id, req.Amount, vec.Vec2Float{X: req.DirX, Z: req.DirZ})
	snap, _ := rs.manager.Snapshot(id)
	ok(c, "Урон нанесён", snap)
}

func (rs *RestServer) handleSetPosition(c *gin.Context) {
	id, found := rs.agentID(c)
	if !found {
		return
	}
	var req PositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Неверный формат запроса")
		return
	}

	rs.manager.SetPosition(id, vec.Vec3Float{X: req.X, Y: req.Y, Z: req.Z})
	pos, _ := rs.manager.GetPosition(id)
	ok(c, "Позиция обновлена", pos)
}

func (rs *RestServer) handleSetRotation(c *gin.Context) {
	id, found := rs.agentID(c)
	if !found {
		return
	}
	var req RotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Неверный формат запроса")
		return
	}

	rs.manager.SetRotation(id, req.Angle)
	snap, _ := rs.manager.Snapshot(id)
	ok(c, "Поворот обновлён", gin.H{"heading": snap.Heading})
}

// handleHistory возвращает события агента из архива, в том числе удалённого
func (rs *RestServer) handleHistory(c *gin.Context) {
	if rs.history == nil {
		c.JSON(http.StatusServiceUnavailable, GenericResponse{Success: false, Message: "Архив событий отключён"})
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "Неверный ID агента")
		return
	}
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	if err != nil || limit <= 0 {
		badRequest(c, "Неверный limit")
		return
	}

	events, err := rs.history.History(c.Request.Context(), strconv.FormatUint(id, 10), limit)
	if err != nil {
		rs.log.Error("Архив: история агента %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: "Ошибка чтения архива"})
		return
	}
	ok(c, "История событий", events)
}

func (rs *RestServer) handleGetDebug(c *gin.Context) {
	ok(c, "Отладочная визуализация", gin.H{"enabled": rs.manager.DebugVisualization()})
}

func (rs *RestServer) handleSetDebug(c *gin.Context) {
	var req DebugRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Неверный формат запроса")
		return
	}
	rs.manager.SetDebugVisualization(req.Enabled)
	ok(c, "Отладочная визуализация переключена", gin.H{"enabled": req.Enabled})
}

// handleDebugPaths возвращает маршруты всех агентов; пусто при выключенной отладке
func (rs *RestServer) handleDebugPaths(c *gin.Context) {
	paths := rs.manager.DebugPaths()
	out := make([]PathResponse, 0, len(paths))
	for id, wp := range paths {
		out = append(out, PathResponse{AgentID: id, Waypoints: wp})
	}
	sortPaths(out)
	ok(c, "Маршруты агентов", out)
}

func (rs *RestServer) handlePoses(c *gin.Context) {
	if rs.poses == nil {
		ok(c, "Позы агентов", []interface{}{})
		return
	}
	poses, err := rs.poses.List(c.Request.Context())
	if err != nil {
		rs.log.Error("Ошибка чтения поз: %v", err)
		c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: "Ошибка чтения поз"})
		return
	}
	ok(c, "Позы агентов", poses)
}

func (rs *RestServer) handlePopups(c *gin.Context) {
	if rs.bridge == nil {
		ok(c, "Цифры урона", []interface{}{})
		return
	}
	ok(c, "Цифры урона", rs.bridge.Popups())
}

func (rs *RestServer) handlePinTarget(c *gin.Context) {
	if rs.target == nil {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Скриптовая цель не настроена"})
		return
	}
	var req PositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Неверный формат запроса")
		return
	}
	rs.target.Pin(vec.Vec2Float{X: req.X, Z: req.Z})
	ok(c, "Цель закреплена", rs.target.Position())
}

func (rs *RestServer) handleReleaseTarget(c *gin.Context) {
	if rs.target == nil {
		c.JSON(http.StatusNotFound, GenericResponse{Success: false, Message: "Скриптовая цель не настроена"})
		return
	}
	rs.target.Release()
	ok(c, "Цель отпущена", nil)
}

func (rs *RestServer) handleStats(c *gin.Context) {
	counts := make(map[string]int)
	for _, s := range rs.manager.Snapshots() {
		counts[s.State]++
	}

	cpuPercent, _ := rs.metrics.GetCPUUsage()
	systemMem, _ := rs.metrics.GetSystemMemory()

	ok(c, "Статистика получена", gin.H{
		"agents": gin.H{
			"total":    rs.manager.Len(),
			"by_state": counts,
		},
		"simulation_time": rs.manager.Now().Seconds(),
		"server": gin.H{
			"uptime":         rs.metrics.GetUptime(),
			"cpu_percent":    fmt.Sprintf("%.2f", cpuPercent),
			"system_mem_pct": fmt.Sprintf("%.2f", systemMem),
			"server_time":    time.Now().Unix(),
		},
		"memory_details": rs.metrics.GetDetailedMemoryStats(),
	})
}

func sortPaths(paths []PathResponse) {
	sort.Slice(paths, func(i, j int) bool { return paths[i].AgentID < paths[j].AgentID })
}
