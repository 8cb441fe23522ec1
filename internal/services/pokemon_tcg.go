package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/codyseavey/card-resolver/backend/internal/metrics"
	"github.com/codyseavey/card-resolver/backend/internal/models"
)

const (
	pokemonTCGBaseURL        = "https://api.pokemontcg.io/v2"
	pokemonTCGDefaultTimeout = 30 * time.Second
	pokemonTCGMaxPageSize    = 250
	pokemonTCGMaxAttempts    = 3
	defaultTCGRateLimit      = 100
	defaultTCGCacheTTL       = time.Hour
	defaultTCGCacheSize      = 512
)

var (
	// ErrRateLimited is returned when the local hourly budget is spent or the
	// API answers 429.
	ErrRateLimited = errors.New("pokemon tcg rate limit exceeded")
	// ErrTCGAPI matches every TCGAPIError.
	ErrTCGAPI = errors.New("pokemon tcg API error")
)

// TCGAPIError is a non-200 answer from the API.
type TCGAPIError struct {
	StatusCode int
	Body       string
}

func (e *TCGAPIError) Error() string {
	return fmt.Sprintf("pokemon tcg API returned status %d: %s", e.StatusCode, e.Body)
}

func (e *TCGAPIError) Unwrap() error {
	return ErrTCGAPI
}

// PokemonTCGOptions configures the Pokémon TCG API client. Zero values fall
// back to defaults.
type PokemonTCGOptions struct {
	APIKey           string
	BaseURL          string
	RateLimitPerHour int
	CacheTTL         time.Duration
	CacheSize        int
}

// PokemonTCGService searches the pokemontcg.io card database.
type PokemonTCGService struct {
	client       *http.Client
	apiKey       string
	baseURL      string
	limiter      *rate.Limiter
	cache        *expirable.LRU[string, []models.Card]
	retryBackoff time.Duration
}

func NewPokemonTCGService(opts PokemonTCGOptions) *PokemonTCGService {
	if opts.BaseURL == "" {
		opts.BaseURL = pokemonTCGBaseURL
	}
	if opts.RateLimitPerHour <= 0 {
		opts.RateLimitPerHour = defaultTCGRateLimit
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultTCGCacheTTL
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = defaultTCGCacheSize
	}

	if opts.APIKey != "" {
		infoLog("Pokemon TCG client initialized with API key (%d requests/hour local budget)", opts.RateLimitPerHour)
	} else {
		warnLog("Pokemon TCG client initialized without API key - public rate limits apply")
	}

	return &PokemonTCGService{
		client: &http.Client{
			Timeout: pokemonTCGDefaultTimeout,
		},
		apiKey:       opts.APIKey,
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		limiter:      rate.NewLimiter(rate.Limit(float64(opts.RateLimitPerHour)/3600), opts.RateLimitPerHour),
		cache:        expirable.NewLRU[string, []models.Card](opts.CacheSize, nil, opts.CacheTTL),
		retryBackoff: 2 * time.Second,
	}
}

type pokemonSearchResponse struct {
	Data       []pokemonCard `json:"data"`
	TotalCount int           `json:"totalCount"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
	Count      int           `json:"count"`
}

type pokemonCard struct {
	TCGPlayer *pokemonTCGPrice `json:"tcgplayer"`
	Set       pokemonSet       `json:"set"`
	Images    pokemonImages    `json:"images"`
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Number    string           `json:"number"`
	HP        string           `json:"hp"`
	Types     []string         `json:"types"`
	Rarity    string           `json:"rarity"`
}

type pokemonSet struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Series       string `json:"series"`
	PrintedTotal int    `json:"printedTotal"`
	Total        int    `json:"total"`
}

type pokemonImages struct {
	Small string `json:"small"`
	Large string `json:"large"`
}

type pokemonTCGPrice struct {
	Prices    map[string]pokemonPriceSet `json:"prices"`
	URL       string                     `json:"url"`
	UpdatedAt string                     `json:"updatedAt"`
}

type pokemonPriceSet struct {
	Low    float64 `json:"low"`
	Mid    float64 `json:"mid"`
	High   float64 `json:"high"`
	Market *float64 `json:"market"`
}

// marketOrMid returns the reported market price, or mid when the API left
// market out.
func (p pokemonPriceSet) marketOrMid() float64 {
	if p.Market == nil {
		return p.Mid
	}
	return *p.Market
}

type setNameMapping struct {
	from string
	to   string
}

// Set names as the vision model reports them, mapped to the API's set.name.
var setNameMappings = []setNameMapping{
	{"Hidden Fates", "Hidden Fates Shiny Vault"},
	{"Shining Legends", "Shining Legends"},
	{"Dragon Majesty", "Dragon Majesty"},
	{"Detective Pikachu", "Detective Pikachu"},
	{"Team Up", "Team Up"},
	{"Unbroken Bonds", "Unbroken Bonds"},
	{"Unified Minds", "Unified Minds"},
	{"Cosmic Eclipse", "Cosmic Eclipse"},
	{"Sword & Shield", "Sword & Shield"},
	{"Rebel Clash", "Rebel Clash"},
	{"Darkness Ablaze", "Darkness Ablaze"},
	{"Champions Path", "Champion's Path"},
	{"Vivid Voltage", "Vivid Voltage"},
	{"Shining Fates", "Shining Fates"},
	{"Battle Styles", "Battle Styles"},
	{"Chilling Reign", "Chilling Reign"},
	{"Evolving Skies", "Evolving Skies"},
	{"Celebrations", "Celebrations"},
	{"Fusion Strike", "Fusion Strike"},
	{"Brilliant Stars", "Brilliant Stars"},
	{"Astral Radiance", "Astral Radiance"},
	{"Pokemon Go", "Pokémon GO"},
	{"Lost Origin", "Lost Origin"},
	{"Silver Tempest", "Silver Tempest"},
	{"Crown Zenith", "Crown Zenith"},
	{"Base Set", "Base"},
	{"Base Set 2", "Base Set 2"},
	{"Jungle", "Jungle"},
	{"Fossil", "Fossil"},
	{"Team Rocket", "Team Rocket"},
	{"Gym Heroes", "Gym Heroes"},
	{"Gym Challenge", "Gym Challenge"},
	{"Sun & Moon", "Sun & Moon"},
	{"Guardians Rising", "Guardians Rising"},
	{"Burning Shadows", "Burning Shadows"},
	{"Crimson Invasion", "Crimson Invasion"},
	{"Ultra Prism", "Ultra Prism"},
	{"Forbidden Light", "Forbidden Light"},
	{"Celestial Storm", "Celestial Storm"},
	{"Lost Thunder", "Lost Thunder"},
	{"XY", "XY"},
	{"Flashfire", "Flashfire"},
	{"Furious Fists", "Furious Fists"},
	{"Phantom Forces", "Phantom Forces"},
	{"Primal Clash", "Primal Clash"},
	{"Roaring Skies", "Roaring Skies"},
	{"Ancient Origins", "Ancient Origins"},
	{"BREAKthrough", "BREAKthrough"},
	{"BREAKpoint", "BREAKpoint"},
	{"Fates Collide", "Fates Collide"},
	{"Steam Siege", "Steam Siege"},
	{"Evolutions", "Evolutions"},
	{"HeartGold & SoulSilver", "HeartGold & SoulSilver"},
	{"HS—Unleashed", "HS—Unleashed"},
	{"HS—Undaunted", "HS—Undaunted"},
	{"HS—Triumphant", "HS—Triumphant"},
	{"Unleashed", "HS—Unleashed"},
	{"Undaunted", "HS—Undaunted"},
	{"Triumphant", "HS—Triumphant"},
}

// Foreign names the model sometimes returns instead of the English name.
var pokemonNameTranslations = map[string]string{
	"Goupix":     "Vulpix",
	"Reptincel":  "Charmeleon",
	"Dracaufeu":  "Charizard",
	"Carapuce":   "Squirtle",
	"Carabaffe":  "Wartortle",
	"Tortank":    "Blastoise",
	"Chenipan":   "Caterpie",
	"Chrysacier": "Metapod",
	"Papilusion": "Butterfree",
	"Aspicot":    "Weedle",
	"Coconfort":  "Kakuna",
	"Dardargnan": "Beedrill",
	"Roucool":    "Pidgey",
	"Roucoups":   "Pidgeotto",
	"Roucarnage": "Pidgeot",
	"Rattatac":   "Raticate",
	"Piafabec":   "Spearow",
	"Rapasdepic": "Fearow",
	"Abo":        "Ekans",
	"フシギダネ":      "Bulbasaur",
	"フシギソウ":      "Ivysaur",
	"フシギバナ":      "Venusaur",
	"ヒトカゲ":       "Charmander",
	"リザード":       "Charmeleon",
	"リザードン":      "Charizard",
	"ゼニガメ":       "Squirtle",
	"カメール":       "Wartortle",
	"カメックス":      "Blastoise",
	"ピカチュウ":      "Pikachu",
	"ライチュウ":      "Raichu",
}

type nameFix struct {
	pattern     *regexp.Regexp
	replacement string
}

func wordFix(from, to string) nameFix {
	return nameFix{regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(from) + `\b`), to}
}

var pokemonApostropheFixes = []nameFix{
	wordFix("farfetchd", "Farfetch'd"),
	wordFix("farfetch d", "Farfetch'd"),
	wordFix("sirfetchd", "Sirfetch'd"),
	wordFix("sirfetch d", "Sirfetch'd"),
}

// Trainer card names that lose their apostrophe in extraction.
var trainerPossessiveFixes = []nameFix{
	wordFix("team rockets", "Team Rocket's"),
	wordFix("team rocket s", "Team Rocket's"),
	wordFix("brocks", "Brock's"),
	wordFix("brock s", "Brock's"),
	wordFix("mistys", "Misty's"),
	wordFix("misty s", "Misty's"),
	wordFix("giovannis", "Giovanni's"),
	wordFix("giovanni s", "Giovanni's"),
	wordFix("lt surges", "Lt. Surge's"),
	wordFix("lt surge s", "Lt. Surge's"),
	wordFix("lieutenant surges", "Lt. Surge's"),
	wordFix("erikas", "Erika's"),
	wordFix("erika s", "Erika's"),
	wordFix("kogas", "Koga's"),
	wordFix("koga s", "Koga's"),
	wordFix("sabrinas", "Sabrina's"),
	wordFix("sabrina s", "Sabrina's"),
	wordFix("blaines", "Blaine's"),
	wordFix("blaine s", "Blaine's"),
	wordFix("blues", "Blue's"),
	wordFix("blue s", "Blue's"),
	wordFix("reds", "Red's"),
	wordFix("red s", "Red's"),
	wordFix("greens", "Green's"),
	wordFix("green s", "Green's"),
	wordFix("bills", "Bill's"),
	wordFix("bill s", "Bill's"),
	wordFix("professor oaks", "Professor Oak's"),
	wordFix("professor oak s", "Professor Oak's"),
	wordFix("professor elms", "Professor Elm's"),
	wordFix("professor elm s", "Professor Elm's"),
	wordFix("professor birches", "Professor Birch's"),
	wordFix("professor birch s", "Professor Birch's"),
	wordFix("professor rowans", "Professor Rowan's"),
	wordFix("professor rowan s", "Professor Rowan's"),
	wordFix("professor junipers", "Professor Juniper's"),
	wordFix("professor juniper s", "Professor Juniper's"),
	wordFix("professor sycamores", "Professor Sycamore's"),
	wordFix("professor sycamore s", "Professor Sycamore's"),
	wordFix("professor kukuis", "Professor Kukui's"),
	wordFix("professor kukui s", "Professor Kukui's"),
	wordFix("professor magnolias", "Professor Magnolia's"),
	wordFix("professor magnolia s", "Professor Magnolia's"),
	wordFix("lysandres", "Lysandre's"),
	wordFix("lysandre s", "Lysandre's"),
	wordFix("flannery s", "Flannery's"),
	wordFix("winona s", "Winona's"),
	wordFix("norman s", "Norman's"),
	wordFix("watson s", "Wattson's"),
	wordFix("roxanne s", "Roxanne's"),
}

var (
	apostropheVariants     = regexp.MustCompile("[‘’`]")
	possessiveJoined       = regexp.MustCompile(`\b([A-Z][a-z]+?)s\s+([A-Z][a-z]+)`)
	possessiveSplit        = regexp.MustCompile(`\b([A-Z][a-z]+?)\s+s\s+([A-Z][a-z]+)`)
	numberWithSuffix       = regexp.MustCompile(`^(\d+)([a-zA-Z]?)$`)
	possessiveReplacement  = "${1}'s ${2}"
	errNoCardDataInPayload = errors.New("response carried no card data")
)

// applyFirstFix applies the first fix whose phrase appears in the name.
func applyFirstFix(name string, fixes []nameFix) string {
	for _, fix := range fixes {
		if fix.pattern.MatchString(name) {
			return fix.pattern.ReplaceAllLiteralString(name, fix.replacement)
		}
	}
	return name
}

// MapSetName converts a reported set name to the API's set.name, trying an
// exact key first and then a case-insensitive one.
func MapSetName(setName string) string {
	if setName == "" {
		return setName
	}
	for _, m := range setNameMappings {
		if m.from == setName {
			return m.to
		}
	}
	for _, m := range setNameMappings {
		if strings.EqualFold(m.from, setName) {
			return m.to
		}
	}
	return setName
}

// NormalizePokemonName rewrites a reported name into the API's spelling:
// translations, apostrophes, trainer possessives, energy glyphs and the
// hyphenated "-GX"/"-EX" suffixes.
func NormalizePokemonName(name string) string {
	if name == "" {
		return name
	}
	original := name

	if translated, ok := pokemonNameTranslations[name]; ok {
		name = translated
	}

	name = apostropheVariants.ReplaceAllString(name, "'")
	name = applyFirstFix(name, pokemonApostropheFixes)
	name = applyFirstFix(name, trainerPossessiveFixes)
	name = possessiveJoined.ReplaceAllString(name, possessiveReplacement)
	name = possessiveSplit.ReplaceAllString(name, possessiveReplacement)
	name = NormalizeEnergySymbols(name)
	name = strings.ReplaceAll(name, " GX", "-GX")
	name = strings.ReplaceAll(name, " EX", "-EX")

	if name != original {
		debugLog("Normalized Pokemon name %q -> %q", original, name)
	}
	return name
}

// NormalizeCardNumber drops a "/total" suffix and leading zeros, keeping a
// one-letter variant suffix ("060b/168" -> "60b").
func NormalizeCardNumber(number string) string {
	if number == "" {
		return number
	}
	if idx := strings.Index(number, "/"); idx >= 0 {
		number = number[:idx]
	}
	if m := numberWithSuffix.FindStringSubmatch(strings.TrimSpace(number)); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			return strconv.Itoa(n) + m[2]
		}
	}
	return number
}

// BuildSearchQuery renders the API's q parameter for a query.
func BuildSearchQuery(q CardQuery) string {
	var parts []string
	if q.Name != "" {
		name := NormalizePokemonName(q.Name)
		if q.Fuzzy {
			parts = append(parts, fmt.Sprintf(`name:"%s*"`, name))
		} else {
			parts = append(parts, fmt.Sprintf(`name:"%s"`, name))
		}
	}
	if q.SetName != "" {
		parts = append(parts, fmt.Sprintf(`set.name:"%s"`, MapSetName(q.SetName)))
	}
	if q.Number != "" {
		parts = append(parts, "number:"+NormalizeCardNumber(q.Number))
	}
	if q.HP != "" {
		parts = append(parts, "hp:"+q.HP)
	}
	return strings.Join(parts, " ")
}

func searchParams(q CardQuery) url.Values {
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > pokemonTCGMaxPageSize {
		pageSize = pokemonTCGMaxPageSize
	}

	params := url.Values{}
	params.Set("page", "1")
	params.Set("pageSize", strconv.Itoa(pageSize))
	if query := BuildSearchQuery(q); query != "" {
		params.Set("q", query)
	}
	return params
}

// SearchCards implements CardSearcher against /cards.
func (s *PokemonTCGService) SearchCards(ctx context.Context, q CardQuery) ([]models.Card, error) {
	params := searchParams(q)
	cacheKey := "search:" + params.Encode()
	if cards, ok := s.cache.Get(cacheKey); ok {
		metrics.TCGCacheHits.Inc()
		debugLog("Cache hit for card search %s", params.Get("q"))
		return cards, nil
	}
	metrics.TCGCacheMisses.Inc()

	reqURL := fmt.Sprintf("%s/cards?%s", s.baseURL, params.Encode())
	infoLog("Pokemon TCG API query: %s", params.Get("q"))

	body, err := s.get(ctx, "search", reqURL)
	if err != nil {
		return nil, err
	}

	var searchResp pokemonSearchResponse
	if err := json.Unmarshal(body, &searchResp); err != nil {
		metrics.TCGAPIErrorsTotal.WithLabelValues("parse").Inc()
		return nil, fmt.Errorf("failed to decode pokemon tcg response: %w", err)
	}

	cards := make([]models.Card, len(searchResp.Data))
	for i, pc := range searchResp.Data {
		cards[i] = convertPokemonCard(pc)
	}
	s.cache.Add(cacheKey, cards)
	return cards, nil
}

// GetCard fetches a card by id. A missing card returns nil, nil.
func (s *PokemonTCGService) GetCard(ctx context.Context, id string) (*models.Card, error) {
	cacheKey := "card:" + id
	if cards, ok := s.cache.Get(cacheKey); ok && len(cards) == 1 {
		metrics.TCGCacheHits.Inc()
		card := cards[0]
		return &card, nil
	}
	metrics.TCGCacheMisses.Inc()

	reqURL := fmt.Sprintf("%s/cards/%s", s.baseURL, url.PathEscape(id))
	body, err := s.get(ctx, "card", reqURL)
	var apiErr *TCGAPIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var response struct {
		Data *pokemonCard `json:"data"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		metrics.TCGAPIErrorsTotal.WithLabelValues("parse").Inc()
		return nil, fmt.Errorf("failed to decode pokemon tcg response: %w", err)
	}
	if response.Data == nil {
		return nil, errNoCardDataInPayload
	}

	card := convertPokemonCard(*response.Data)
	s.cache.Add(cacheKey, []models.Card{card})
	return &card, nil
}

// get performs a rate-limited GET, retrying transport failures with
// exponential backoff.
func (s *PokemonTCGService) get(ctx context.Context, endpoint, reqURL string) ([]byte, error) {
	if !s.limiter.Allow() {
		metrics.TCGAPIErrorsTotal.WithLabelValues("rate_limited").Inc()
		warnLog("Pokemon TCG local rate limit reached")
		return nil, ErrRateLimited
	}

	var lastErr error
	backoff := s.retryBackoff
	for attempt := 1; attempt <= pokemonTCGMaxAttempts; attempt++ {
		body, retryable, err := s.do(ctx, endpoint, reqURL)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable || attempt == pokemonTCGMaxAttempts {
			break
		}

		debugLog("Pokemon TCG request failed (attempt %d/%d): %v", attempt, pokemonTCGMaxAttempts, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, lastErr
}

// do sends one request. The bool reports whether the failure is transient.
func (s *PokemonTCGService) do(ctx context.Context, endpoint, reqURL string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("X-Api-Key", s.apiKey)
	}

	metrics.TCGAPIRequestsTotal.WithLabelValues(endpoint).Inc()
	start := time.Now()
	resp, err := s.client.Do(req)
	metrics.TCGAPILatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.TCGAPIErrorsTotal.WithLabelValues("network").Inc()
		return nil, ctx.Err() == nil, fmt.Errorf("failed to query pokemon tcg: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.TCGAPIErrorsTotal.WithLabelValues("network").Inc()
		return nil, true, fmt.Errorf("failed to read pokemon tcg response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.TCGAPIErrorsTotal.WithLabelValues("rate_limited").Inc()
		return nil, false, ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		metrics.TCGAPIErrorsTotal.WithLabelValues("status").Inc()
		return nil, false, &TCGAPIError{StatusCode: resp.StatusCode, Body: truncateForLog(string(body), 200)}
	}
	return body, false, nil
}

func truncateForLog(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func convertPokemonCard(pc pokemonCard) models.Card {
	card := models.Card{
		ID:        pc.ID,
		Name:      pc.Name,
		SetID:     pc.Set.ID,
		SetName:   pc.Set.Name,
		SetSeries: pc.Set.Series,
		SetTotal:  pc.Set.PrintedTotal,
		Number:    pc.Number,
		HP:        pc.HP,
		Types:     pc.Types,
		Rarity:    pc.Rarity,
	}
	if card.SetTotal == 0 {
		card.SetTotal = pc.Set.Total
	}

	if pc.Images.Small != "" || pc.Images.Large != "" {
		card.Images = make(map[string]string, 2)
		if pc.Images.Small != "" {
			card.Images["small"] = pc.Images.Small
		}
		if pc.Images.Large != "" {
			card.Images["large"] = pc.Images.Large
		}
	}

	if pc.TCGPlayer != nil && len(pc.TCGPlayer.Prices) > 0 {
		card.MarketPrices = make(map[string]models.MarketPrice, len(pc.TCGPlayer.Prices))
		for variant, p := range pc.TCGPlayer.Prices {
			card.MarketPrices[variant] = models.MarketPrice{Low: p.Low, Mid: p.Mid, High: p.High, Market: p.marketOrMid()}
		}
	}
	return card
}
