package mock_render

//go:generate -command mockgen go run go.uber.org/mock/mockgen -package=$GOPACKAGE -destination=./mocks.go github.com/matzehuels/mdbook-diagrams/pkg/render
//go:generate mockgen Renderer
