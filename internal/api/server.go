package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cpamm/internal/amm"
	"cpamm/internal/model"
)

// Respond is the envelope of every response.
type Respond struct {
	Result interface{} `json:"result"`
	Error  *string     `json:"error"`
}

// Server exposes read-only views of an engine over HTTP.
type Server struct {
	engine *amm.Engine
	logger *zap.Logger
	router *gin.Engine
}

func NewServer(engine *amm.Engine, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)
	s := &Server{engine: engine, logger: logger, router: gin.New()}
	s.router.Use(gin.Recovery(), s.logRequests)

	s.router.GET("/health", s.health)
	s.router.GET("/pools", s.listPools)
	s.router.GET("/pools/:key", s.getPool)
	s.router.GET("/pools/:key/quote", s.quoteSwap)
	s.router.GET("/prices/:mint", s.getPrice)
	s.router.GET("/balances/:owner/:mint", s.getBalance)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Debug("request",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Int("status", c.Writer.Status()),
		zap.Duration("elapsed", time.Since(start)),
	)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, Respond{Result: gin.H{"status": "ok", "pools": len(s.engine.Registry().Pools())}})
}

func (s *Server) listPools(c *gin.Context) {
	c.JSON(http.StatusOK, Respond{Result: s.engine.Registry().Pools()})
}

func (s *Server) getPool(c *gin.Context) {
	key, err := model.ParseAddress(c.Param("key"))
	if err != nil {
		s.fail(c, err)
		return
	}
	pool, err := s.engine.Pool(key)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Respond{Result: pool})
}

func (s *Server) quoteSwap(c *gin.Context) {
	key, err := model.ParseAddress(c.Param("key"))
	if err != nil {
		s.fail(c, err)
		return
	}
	inputMint, err := model.ParseAddress(c.Query("input_mint"))
	if err != nil {
		s.fail(c, err)
		return
	}
	discountMint, err := model.ParseAddress(c.Query("discount_mint"))
	if err != nil {
		s.fail(c, err)
		return
	}
	amountIn, err := strconv.ParseUint(c.Query("amount_in"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorRespond(errors.New("amount_in must be an unsigned integer")))
		return
	}
	var minOut uint64
	if raw := c.Query("min_amount_out"); raw != "" {
		if minOut, err = strconv.ParseUint(raw, 10, 64); err != nil {
			c.JSON(http.StatusBadRequest, errorRespond(errors.New("min_amount_out must be an unsigned integer")))
			return
		}
	}

	res, err := s.engine.QuoteSwap(amm.SwapRequest{
		Pool:         key,
		InputMint:    inputMint,
		AmountIn:     amountIn,
		MinAmountOut: minOut,
		DiscountMint: discountMint,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Respond{Result: res})
}

func (s *Server) getPrice(c *gin.Context) {
	mint, err := model.ParseAddress(c.Param("mint"))
	if err != nil {
		s.fail(c, err)
		return
	}
	quote, err := s.engine.USDPrice(mint)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Respond{Result: quote})
}

func (s *Server) getBalance(c *gin.Context) {
	owner, err := model.ParseAddress(c.Param("owner"))
	if err != nil {
		s.fail(c, err)
		return
	}
	mint, err := model.ParseAddress(c.Param("mint"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Respond{Result: gin.H{
		"owner":   owner,
		"mint":    mint,
		"balance": strconv.FormatUint(s.engine.Balance(owner, mint), 10),
	}})
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, errorRespond(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, amm.ErrPoolNotFound),
		errors.Is(err, amm.ErrUnknownMint),
		errors.Is(err, amm.ErrUnknownDiscountConfig),
		errors.Is(err, amm.ErrNoPricePath):
		return http.StatusNotFound
	case errors.Is(err, amm.ErrInvalidAddress),
		errors.Is(err, amm.ErrUnknownAsset),
		errors.Is(err, amm.ErrZeroAmount):
		return http.StatusBadRequest
	case errors.Is(err, amm.ErrSlippageExceeded),
		errors.Is(err, amm.ErrNotApproved),
		errors.Is(err, amm.ErrZeroLiquidity),
		errors.Is(err, amm.ErrOverflow),
		errors.Is(err, amm.ErrUnderflow):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func errorRespond(err error) Respond {
	msg := err.Error()
	return Respond{Error: &msg}
}
